/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/corn-moisture/platform/cmd"

func main() {
	cmd.Execute()
}
