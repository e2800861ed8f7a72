package main

import "quizload/cmd"

func main() {
	cmd.Execute()
}
