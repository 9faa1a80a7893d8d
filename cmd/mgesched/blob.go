package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mge-net/mgesched/internal/schedblob"
)

func init() {
	rootCmd.AddCommand(blobCmd)
	blobCmd.AddCommand(blobDecodeCmd)
	blobCmd.AddCommand(blobEncodeCmd)

	for _, f := range []string{"uptime-avg", "samples", "start-time", "discharge-rate", "last-charge-pct", "last-update-time", "total-cpus"} {
		blobEncodeCmd.Flags().String(f, "0", "field value")
	}
}

var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Inspect and build sched_data blobs",
}

var blobDecodeCmd = &cobra.Command{
	Use:   "decode BASE64",
	Short: "Decode a base64 sched_data blob to JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := schedblob.Decode(args[0])
		enc, err := json.MarshalIndent(b, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(enc))
		return nil
	},
}

var blobEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a sched_data blob from flag values",
	RunE: func(cmd *cobra.Command, args []string) error {
		b := schedblob.Blob{
			UptimeAvg:      mustFloat(cmd, "uptime-avg"),
			Samples:        mustInt(cmd, "samples"),
			StartTime:      mustFloat(cmd, "start-time"),
			DischargeRate:  mustFloat(cmd, "discharge-rate"),
			LastChargePct:  mustFloat(cmd, "last-charge-pct"),
			LastUpdateTime: mustFloat(cmd, "last-update-time"),
			TotalCPUs:      mustInt(cmd, "total-cpus"),
		}
		fmt.Println(schedblob.Encode(b))
		return nil
	},
}

func mustFloat(cmd *cobra.Command, name string) float64 {
	s, _ := cmd.Flags().GetString(name)
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func mustInt(cmd *cobra.Command, name string) int64 {
	s, _ := cmd.Flags().GetString(name)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
