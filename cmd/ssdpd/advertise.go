package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdpd/internal/config"
	"github.com/muurk/ssdpd/internal/registry"
	"github.com/muurk/ssdpd/internal/ssdp"
	"github.com/muurk/ssdpd/internal/ui"
)

// Advertise command flags
var (
	advertiseUSN string
	assumeYes    bool
)

func init() {
	advertiseAddCmd.Flags().StringVar(&advertiseUSN, "usn", "", "Unique service name (default: uuid:<random>::<service-type>)")
	advertiseRemoveCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Remove without asking for confirmation")

	advertiseCmd.AddCommand(advertiseAddCmd)
	advertiseCmd.AddCommand(advertiseListCmd)
	advertiseCmd.AddCommand(advertiseRemoveCmd)
	rootCmd.AddCommand(advertiseCmd)
}

var advertiseCmd = &cobra.Command{
	Use:   "advertise",
	Short: "Manage the services this host advertises",
	Long: `Manage the advertisements stored in the config file.

While 'ssdpd run' is active it answers every M-SEARCH whose search target
is ssdp:all or equals an advertisement's service type. Changes take effect
the next time the daemon starts.`,
}

var advertiseAddCmd = &cobra.Command{
	Use:   "add <location> <service-type>",
	Short: "Add an advertisement",
	Example: `  ssdpd advertise add http://192.168.1.10:8200/rootDesc.xml urn:schemas-upnp-org:device:MediaServer:1
  ssdpd advertise add http://192.168.1.10/desc.xml upnp:rootdevice --usn uuid:1234::upnp:rootdevice`,
	Args: cobra.ExactArgs(2),
	RunE: runAdvertiseAdd,
}

func runAdvertiseAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ad, err := cfg.AddAdvertisement(args[0], args[1], advertiseUSN)
	if err != nil {
		return fmt.Errorf("failed to add advertisement: %w", err)
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}

	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Advertisement added", map[string]string{
		"USN":          ad.USN,
		"Location":     ad.Location,
		"Service type": ad.ServiceType,
	})
	return nil
}

var advertiseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List advertisements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintAdvertisements(configuredAdvertisements(cfg, time.Now()))
		return nil
	},
}

// configuredAdvertisements converts config entries for display
func configuredAdvertisements(cfg *config.Config, now time.Time) []registry.Advertisement {
	ads := make([]registry.Advertisement, 0, len(cfg.Advertisements))
	for _, a := range cfg.Advertisements {
		ads = append(ads, registry.Advertisement{
			ID:          a.USN,
			Protocol:    ssdp.ProtocolID,
			URI:         a.Location,
			ServiceType: a.ServiceType,
			Internal:    true,
			LastSeen:    now,
		})
	}
	return ads
}

var advertiseRemoveCmd = &cobra.Command{
	Use:   "remove <usn>",
	Short: "Remove an advertisement",
	Long: `Remove an advertisement by USN. A unique prefix of the USN is enough,
e.g. 'ssdpd advertise remove uuid:6f9c'.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdvertiseRemove,
}

func runAdvertiseRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve the prefix on a copy first so the prompt names the exact USN
	probe := *cfg
	probe.Advertisements = append([]*config.Advertisement(nil), cfg.Advertisements...)
	usn, err := probe.RemoveAdvertisement(args[0])
	if err != nil {
		return err
	}

	if !assumeYes {
		ad := cfg.FindAdvertisement(usn)
		ok := ui.Confirm(os.Stdin, cmd.OutOrStdout(), "Remove advertisement", map[string]string{
			"USN":      ad.USN,
			"Location": ad.Location,
		}, "Remove this advertisement?")
		if !ok {
			return nil
		}
	}

	cfg.Advertisements = probe.Advertisements
	if err := saveConfig(cfg); err != nil {
		return err
	}

	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Advertisement removed", map[string]string{"USN": usn})
	return nil
}
