// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/s1alknau/Nematostella-time-series/pkg/lumen"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display controller traffic in human-readable form",
	Long: `Continuously read the connection and decode controller responses as
they arrive.

Each recognized response is shown with a timestamp and its decoded
fields; unrecognized bytes are hex-dumped. Useful for diagnosing a
controller that is emitting unsolicited or garbled data.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// responseLength returns how many bytes the response starting with
// header occupies, or 0 for unknown headers.
func responseLength(header byte) int {
	switch header {
	case lumen.RespSyncComplete:
		return lumen.SyncResponseSize
	case lumen.RespStatusOff, lumen.RespStatusOn:
		return lumen.SensorStatusSize
	case lumen.RespLEDStatus:
		return lumen.LEDStatusSize
	case lumen.RespAck, lumen.RespTimingSet, lumen.RespIRSelected, lumen.RespWhiteSelected, lumen.RespError:
		return 1
	default:
		return 0
	}
}

func formatResponse(data []byte) string {
	switch data[0] {
	case lumen.RespAck:
		return "ACK"
	case lumen.RespTimingSet:
		return "TIMING_SET"
	case lumen.RespIRSelected:
		return "SELECTED ir"
	case lumen.RespWhiteSelected:
		return "SELECTED white"
	case lumen.RespError:
		return "ERROR"
	case lumen.RespSyncComplete:
		r, err := lumen.DecodeSyncResponse(data)
		if err != nil {
			return fmt.Sprintf("SYNC_COMPLETE (garbled: %v)", err)
		}
		return fmt.Sprintf("SYNC_COMPLETE timing=%dms channel=%s power=%d%% temp=%.1f°C humidity=%.1f%%",
			r.TimingMs, r.Channel, r.Power, r.Temperature, r.Humidity)
	case lumen.RespStatusOff, lumen.RespStatusOn:
		r, err := lumen.DecodeSensorStatus(data)
		if err != nil {
			return fmt.Sprintf("SENSOR_STATUS (garbled: %v)", err)
		}
		return fmt.Sprintf("SENSOR_STATUS led=%v temp=%.1f°C humidity=%.1f%%", r.LEDOn, r.Temperature, r.Humidity)
	case lumen.RespLEDStatus:
		r, err := lumen.DecodeLEDStatus(data)
		if err != nil {
			return fmt.Sprintf("LED_STATUS (garbled: %v)", err)
		}
		return fmt.Sprintf("LED_STATUS selected=%s ir=%v/%d%% white=%v/%d%%",
			r.Selected, r.IROn, r.IRPower, r.WhiteOn, r.WhitePower)
	default:
		return fmt.Sprintf("UNKNOWN 0x%02X", data[0])
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetReadTimeout(time.Second); err != nil {
		return err
	}

	fmt.Printf("Nemacap - Controller Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	buf := make([]byte, 128)
	var pending []byte
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}
		if n == 0 {
			continue
		}
		pending = append(pending, buf[:n]...)

		for len(pending) > 0 {
			need := responseLength(pending[0])
			if need == 0 {
				// Not a known header; dump and resync on the next byte
				fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), formatResponse(pending[:1]))
				pending = pending[1:]
				continue
			}
			if len(pending) < need {
				break
			}
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), formatResponse(pending[:need]))
			pending = pending[need:]
		}
	}
}
