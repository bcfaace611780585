package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/habedi/totempark/account"
	"github.com/habedi/totempark/pkg/validation"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func sellerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seller",
		Short: "Manage seller accounts",
	}
	cmd.AddCommand(sellerCreateCmd(), sellerListCmd())
	return cmd
}

func sellerCreateCmd() *cobra.Command {
	var name, email string
	var admin bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a seller account, prompting for the password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			password, err := promptPassword(cmd, "Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			seller, err := account.NewService(st.Sellers, nil).Register(cmd.Context(), account.Registration{
				Name:     name,
				Email:    email,
				Password: password,
				IsAdmin:  admin,
			})
			if err != nil {
				return err
			}
			cmd.Printf("Seller %d (%s) created.\n", seller.ID, seller.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name of the seller (required)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Login email of the seller (required)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant administrator rights")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func sellerListCmd() *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List seller accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidatePage(skip, limit); err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sellers, err := st.Sellers.List(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			if len(sellers) == 0 {
				cmd.Println("No sellers found. Use `totempark seller create` to add one.")
				return nil
			}

			table := newTable(cmd, "ID", "Name", "Email", "Admin", "MP Linked")
			for i := range sellers {
				s := &sellers[i]
				table.Append([]string{
					strconv.FormatUint(uint64(s.ID), 10),
					s.Name,
					s.Email,
					strconv.FormatBool(s.IsAdmin),
					strconv.FormatBool(s.MPLinked()),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Number of sellers to skip")
	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum number of sellers to show")
	return cmd
}

// promptPassword reads a password without echo when stdin is a terminal and
// a single line otherwise, so scripts can pipe it in.
var promptPassword = func(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	cmd.Print(prompt)
	password, err := term.ReadPassword(fd)
	cmd.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(password)), nil
}

func newTable(cmd *cobra.Command, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)
	return table
}
