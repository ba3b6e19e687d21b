package main

import (
	"log"
	"os"

	"github.com/m-mizutani/capwriter/pkg/capture"
	"github.com/urfave/cli"
)

var logger = capture.Logger

func main() {
	config, err := capture.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	app := newApp(config)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(config *capture.Config) *cli.App {
	app := cli.NewApp()
	app.Name = "capwriter"
	app.Usage = "Write captured packets into a pcap file"
	app.Version = "1.0.2"

	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "log-level", Value: config.LogLevel, Usage: "trace, debug, info, warn, error"},
		cli.StringFlag{Name: "log-file", Value: config.LogFile, Usage: "Write log to rotated file instead of stderr"},
		cli.IntFlag{Name: "snaplen", Value: config.SnapshotLength, Usage: "Snapshot length of the output file"},
		cli.IntFlag{Name: "max-retries", Value: config.MaxRetries, Usage: "Retry limit on interrupted writes, 0 is unlimited"},
		cli.BoolFlag{Name: "continue-on-error", Usage: "Skip packets whose record header could not be written"},
		cli.BoolFlag{Name: "hexdump", Usage: "Print hex dump of each written packet"},
		cli.StringFlag{Name: "summary", Usage: "Write JSON summary of each packet to `PATH`"},
		cli.StringFlag{Name: "aws-region", Value: config.AwsRegion},
		cli.StringFlag{Name: "s3-bucket", Value: config.AwsS3Bucket, Usage: "Upload output file to the bucket after capture"},
		cli.StringFlag{Name: "s3-prefix", Value: config.AwsS3Prefix},
		cli.BoolFlag{Name: "s3-time-key", Usage: "Add YYYY/MM/DD/HH/ to the S3 key"},
	}

	app.Before = func(c *cli.Context) error {
		return capture.SetupLogger(c.String("log-level"), c.String("log-file"))
	}

	app.Commands = []cli.Command{
		{
			Name:   "device",
			Usage:  "Capture packets from a network interface",
			Action: deviceCommand(config),
			Flags: []cli.Flag{
				cli.IntFlag{Name: "count, n", Value: 50, Usage: "Number of packets to capture"},
				cli.StringFlag{Name: "output, f", Value: "out.pcap", Usage: "Output path"},
				cli.StringFlag{Name: "interface, i", Usage: "Capture device, first available if empty"},
				cli.BoolFlag{Name: "promisc", Usage: "Enable promiscuous mode"},
			},
		},
		{
			Name:   "file",
			Usage:  "Rewrite packets of an existing pcap file",
			Action: fileCommand(config),
			Flags: []cli.Flag{
				cli.StringFlag{Name: "input, i", Usage: "Input file name (required)"},
				cli.StringFlag{Name: "output, o", Value: "out.pcap", Usage: "Output file name, written as writer_<name>"},
				cli.StringFlag{Name: "reference", Usage: "Also write a reference dump to `PATH`"},
			},
		},
		{
			Name:   "vxlan",
			Usage:  "Capture VXLAN encapsulated packets received over UDP",
			Action: vxlanCommand(config),
			Flags: []cli.Flag{
				cli.IntFlag{Name: "count, n", Usage: "Number of packets to capture, 0 is unlimited"},
				cli.StringFlag{Name: "output, o", Value: "out.pcap", Usage: "Output path"},
				cli.IntFlag{Name: "port", Value: capture.DefaultVxlanPort},
				cli.IntFlag{Name: "queue-size", Value: capture.DefaultReceiverQueueSize},
			},
		},
	}

	return app
}
