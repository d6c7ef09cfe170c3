// Command uartboot-sim runs the bootloader orchestrator against a real
// serial port (typically one end of a socat-created PTY pair, or a
// USB-serial adapter looped back to a flashing rig), backed by an
// in-memory flash array instead of real S32K144 silicon. It exists so
// the bootloader's protocol and flash logic can be exercised end to
// end from the companion uartboot-flash tool without any hardware.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dpham-s32k144/uartboot/boot"
	"github.com/dpham-s32k144/uartboot/flash"
	"github.com/dpham-s32k144/uartboot/handoff"
	"github.com/dpham-s32k144/uartboot/uart"
)

type stdLogger struct{ l *log.Logger }

func (s stdLogger) Printf(format string, args ...any) { s.l.Printf(format, args...) }

func main() {
	var (
		portPath     string
		baud         uint32
		appBase      uint32
		appSize      uint32
		flashSize    uint32
		sectorSize   uint32
		sramStart    uint32
		sramSize     uint32
		enableVerify bool
	)

	root := &cobra.Command{
		Use:   "uartboot-sim",
		Short: "Simulate the S32K144 UART bootloader over a real serial port",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := uart.Open(portPath)
			if err != nil {
				return fmt.Errorf("open %s: %w", portPath, err)
			}
			defer port.Close()

			dev := uart.NewHostPort(port)
			sim := flash.NewSim(0, flashSize, sectorSize)

			cfg := boot.Config{
				AppBase:      appBase,
				AppEndExcl:   appBase + appSize,
				SRAMStart:    sramStart,
				SRAMEndExcl:  sramStart + sramSize,
				FlashStart:   0,
				FlashEndExcl: flashSize,
				Baud:         baud,
				EnableVerify: enableVerify,
			}

			logger := stdLogger{log.New(os.Stderr, "uartboot-sim: ", log.LstdFlags)}
			orch := boot.New(dev, sim, &handoff.Recorder{}, boot.NoBootPin{}, cfg, logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			logger.Printf("listening on %s at %d baud, app region 0x%08X-0x%08X", portPath, baud, cfg.AppBase, cfg.AppEndExcl)
			return orch.Run(ctx)
		},
	}

	flagSet := root.Flags()
	flagSet.StringVar(&portPath, "port", "/dev/ttyUSB0", "serial device to listen on")
	flagSet.Uint32Var(&baud, "baud", 19200, "baud rate")
	flagSet.Uint32Var(&appBase, "app-base", 0xA000, "application base address")
	flagSet.Uint32Var(&appSize, "app-size", 0x76000, "application region size in bytes")
	flagSet.Uint32Var(&flashSize, "flash-size", 0x80000, "simulated flash array size in bytes")
	flagSet.Uint32Var(&sectorSize, "sector-size", 0x800, "simulated flash sector size in bytes")
	flagSet.Uint32Var(&sramStart, "sram-start", 0x1FFF8000, "simulated SRAM base address")
	flagSet.Uint32Var(&sramSize, "sram-size", 0xF000, "simulated SRAM size in bytes")
	flagSet.BoolVar(&enableVerify, "verify", false, "read back every programmed phrase")

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
