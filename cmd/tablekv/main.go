/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/tablekv/cmd/tablekv/cmd"

func main() {
	cmd.Execute()
}
