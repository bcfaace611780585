package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/validation"
	"github.com/spf13/cobra"
)

func totemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totem",
		Short: "Manage totems",
	}
	cmd.AddCommand(totemCreateCmd(), totemListCmd())
	return cmd
}

func totemCreateCmd() *cobra.Command {
	var externalID, location string
	var ownerID uint
	var inactive bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a totem and assign it to a seller",
		RunE: func(cmd *cobra.Command, args []string) error {
			externalID = strings.TrimSpace(externalID)
			if err := validation.ValidateExternalPosID(externalID); err != nil {
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

			totem := &db.Totem{ExternalPosID: externalID, IsActive: !inactive}
			if location != "" {
				totem.Location = &location
			}
			if ownerID != 0 {
				if _, err := st.Sellers.GetByID(cmd.Context(), ownerID); err != nil {
					if errors.Is(err, db.ErrNotFound) {
						return fmt.Errorf("seller %d does not exist", ownerID)
					}
					return err
				}
				totem.OwnerID = &ownerID
			}

			if err := st.Totems.Create(cmd.Context(), totem); err != nil {
				if errors.Is(err, db.ErrDuplicate) {
					return fmt.Errorf("a totem with external id %s already exists", externalID)
				}
				return err
			}
			cmd.Printf("Totem %d (%s) created.\n", totem.ID, totem.ExternalPosID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&externalID, "external-id", "x", "", "External point-of-sale id, e.g. QR_CAJA_01 (required)")
	cmd.Flags().StringVarP(&location, "location", "l", "", "Where the totem is installed")
	cmd.Flags().UintVarP(&ownerID, "owner", "o", 0, "ID of the owning seller; 0 leaves the totem unassigned")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the totem disabled")
	_ = cmd.MarkFlagRequired("external-id")
	return cmd
}

func totemListCmd() *cobra.Command {
	var ownerID uint
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List totems",
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

			var owner *uint
			if cmd.Flags().Changed("owner") {
				owner = &ownerID
			}
			totems, err := st.Totems.List(cmd.Context(), skip, limit, owner)
			if err != nil {
				return err
			}
			if len(totems) == 0 {
				cmd.Println("No totems found.")
				return nil
			}

			table := newTable(cmd, "ID", "External POS ID", "Location", "Active", "Owner")
			for _, t := range totems {
				loc, ownerCol := "-", "-"
				if t.Location != nil {
					loc = *t.Location
				}
				if t.OwnerID != nil {
					ownerCol = strconv.FormatUint(uint64(*t.OwnerID), 10)
				}
				table.Append([]string{
					strconv.FormatUint(uint64(t.ID), 10),
					t.ExternalPosID,
					loc,
					strconv.FormatBool(t.IsActive),
					ownerCol,
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().UintVarP(&ownerID, "owner", "o", 0, "Only show totems owned by this seller")
	cmd.Flags().IntVar(&skip, "skip", 0, "Number of totems to skip")
	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum number of totems to show")
	return cmd
}
