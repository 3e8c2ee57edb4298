package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/numbrly/portal/scripts/internal"
)

// Command represents a script that can be run
type Command struct {
	Name        string
	Description string
	Run         func() error
}

var commands = []Command{
	{
		Name:        "seed-numbers",
		Description: "Load numbers from a JSON file into the inventory",
		Run:         internal.SeedNumbers,
	},
	{
		Name:        "grant-balance",
		Description: "Credit a user's balance as an operator top-up",
		Run:         internal.GrantBalance,
	},
}

func main() {
	var (
		listCommands bool
		cmdName      string
		numbersFile  string
		userID       string
		amount       string
	)

	flag.BoolVar(&listCommands, "list", false, "List all available commands")
	flag.StringVar(&cmdName, "cmd", "", "Command to run")
	flag.StringVar(&numbersFile, "numbers-file", "", "Path to numbers JSON file")
	flag.StringVar(&userID, "user-id", "", "User ID for balance operations")
	flag.StringVar(&amount, "amount", "", "Amount in minor units")

	flag.Parse()

	if listCommands {
		fmt.Println("Available commands:")
		for _, cmd := range commands {
			fmt.Printf("  %-20s %s\n", cmd.Name, cmd.Description)
		}
		return
	}

	if cmdName == "" {
		log.Fatal("Please specify a command to run using -cmd flag. Use -list to see available commands.")
	}

	if numbersFile != "" {
		os.Setenv("NUMBERS_FILE", numbersFile)
	}
	if userID != "" {
		os.Setenv("USER_ID", userID)
	}
	if amount != "" {
		os.Setenv("AMOUNT", amount)
	}

	for _, cmd := range commands {
		if cmd.Name == cmdName {
			if err := cmd.Run(); err != nil {
				log.Fatalf("Error running command %s: %v", cmdName, err)
			}
			return
		}
	}

	log.Fatalf("Unknown command: %s. Use -list to see available commands.", cmdName)
}
