package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-webapp/agentdesk"
)

var (
	accountsJSON bool

	accountProvider    string
	accountModel       string
	accountAPIKey      string
	accountBaseURL     string
	accountDescription string
	accountDefault     bool
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage provider accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		accounts, err := client.Accounts.List(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if accountsJSON {
			return printJSON(accounts)
		}
		if len(accounts) == 0 {
			fmt.Println("No accounts configured.")
			return nil
		}
		for _, a := range accounts {
			mark := " "
			if a.IsDefault {
				mark = "*"
			}
			fmt.Printf("%s %-20s  %-12s  %s\n", mark, a.Name, a.Config.ProviderID, a.Config.Model)
		}
		return nil
	},
}

func accountOptions(name string) (*agentdesk.AccountOptions, error) {
	if accountProvider == "" || accountModel == "" {
		return nil, fmt.Errorf("--provider and --model are required")
	}
	return &agentdesk.AccountOptions{
		Name:        name,
		ProviderID:  accountProvider,
		Model:       accountModel,
		APIKey:      accountAPIKey,
		BaseURL:     accountBaseURL,
		Description: accountDescription,
		IsDefault:   accountDefault,
	}, nil
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Add a provider account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := accountOptions(args[0])
		if err != nil {
			return err
		}
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		a, err := client.Accounts.Create(ctx, opts)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Printf("Account %s created (%s/%s)\n", a.Name, a.Config.ProviderID, a.Config.Model)
		return nil
	},
}

var accountsUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Update a provider account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := accountOptions("")
		if err != nil {
			return err
		}
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		a, err := client.Accounts.Update(ctx, args[0], opts)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Printf("Account %s updated (%s/%s)\n", a.Name, a.Config.ProviderID, a.Config.Model)
		return nil
	},
}

var accountsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a provider account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		res, err := client.Accounts.Delete(ctx, args[0])
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Println(valueOrDefault(res.Message, "Account removed"))
		return nil
	},
}

var accountsDefaultCmd = &cobra.Command{
	Use:   "default <name>",
	Short: "Make an account the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		a, err := client.Accounts.SetDefault(ctx, args[0])
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Printf("Default account: %s\n", a.Name)
		return nil
	},
}

func init() {
	accountsListCmd.Flags().BoolVar(&accountsJSON, "json", false, "Output raw JSON")

	for _, c := range []*cobra.Command{accountsCreateCmd, accountsUpdateCmd} {
		c.Flags().StringVar(&accountProvider, "provider", "", "Provider id (e.g. openai)")
		c.Flags().StringVar(&accountModel, "model", "", "Model name")
		c.Flags().StringVar(&accountAPIKey, "api-key", "", "Provider API key")
		c.Flags().StringVar(&accountBaseURL, "provider-url", "", "Provider base URL")
		c.Flags().StringVar(&accountDescription, "description", "", "Description")
		c.Flags().BoolVar(&accountDefault, "default", false, "Make this the default account")
	}

	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsCreateCmd)
	accountsCmd.AddCommand(accountsUpdateCmd)
	accountsCmd.AddCommand(accountsDeleteCmd)
	accountsCmd.AddCommand(accountsDefaultCmd)

	rootCmd.AddCommand(accountsCmd)
}
