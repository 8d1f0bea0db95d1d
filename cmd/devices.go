package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/gen1nya/WinMediaSessionProvider/core/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture-capable audio endpoints",
	Long:  `Enumerates active render endpoints (captured via loopback) and capture endpoints, with the IDs accepted by the device selection API.`,
	Run: func(cmd *cobra.Command, args []string) {
		devices, err := capture.ListDevices()
		if err != nil {
			log.Fatalf("Failed to enumerate devices: %v", err)
		}
		if len(devices) == 0 {
			fmt.Println("No capture-capable endpoints found.")
			return
		}
		for _, d := range devices {
			kind := "capture"
			if d.Loopback {
				kind = "loopback"
			}
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s [%s] %s\n    id: %s\n", marker, kind, d.Label, d.ID)
		}
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
