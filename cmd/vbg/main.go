package main

import "github.com/vanlang-budget/budget-guardian/internal/cli"

func main() {
	cli.Execute()
}
