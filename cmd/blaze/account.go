package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/dcrodman/blaze/internal"
	"github.com/dcrodman/blaze/internal/core/auth"
	"github.com/dcrodman/blaze/internal/core/data"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account management tools",
}

var accountAddCmd = &cobra.Command{
	Use:   "add [username] [password] [email]",
	Short: "Registers new accounts in the database",
	Run:   AccountAddCommand,
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete [username]",
	Short: "Deletes accounts from the database",
	Run:   AccountDeleteCommand,
}

var PermanentFlag bool

func initDB() *gorm.DB {
	db, err := internal.OpenDatabase(loadConfig())
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return db
}

func AccountAddCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	defer data.Shutdown(db)

	username, args := popArg(args, "Username")
	password, args := popArg(args, "Password")
	email, _ := popArg(args, "Email")
	if username == "" || password == "" || email == "" {
		fmt.Println("username, password and email are all required")
		return
	}

	existing, err := data.FindAccountByUsername(db, username)
	if err != nil {
		fmt.Println("error finding account:", err)
		return
	} else if existing != nil {
		fmt.Printf("account '%s' already exists; skipping\n", username)
		return
	}

	account, err := auth.CreateAccount(db, username, password, email)
	if err != nil {
		fmt.Println("error creating account:", err)
		return
	}
	fmt.Printf("created account for '%s' (ID: %d)\n", account.Username, account.ID)
}

func AccountDeleteCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	defer data.Shutdown(db)

	username, _ := popArg(args, "Username")

	var err error
	if PermanentFlag {
		err = auth.PermanentlyDeleteAccount(db, username)
	} else {
		err = auth.DeleteAccount(db, username)
	}
	if errors.Is(err, auth.ErrAccountNotFound) {
		fmt.Printf("no account named '%s'\n", username)
		return
	} else if err != nil {
		fmt.Println("error deleting account:", err)
		return
	}
	fmt.Println("deleted account")
}

func popArg(args []string, prompt string) (string, []string) {
	if len(args) == 1 {
		return args[0], nil
	} else if len(args) > 1 {
		return args[0], args[1:]
	}

	fmt.Printf("%s: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text()), args
}
