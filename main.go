/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/whisperbox/apiserver/cmd"

func main() {
	cmd.Execute()
}
