package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/capwriter/pkg/capture"
	"github.com/m-mizutani/capwriter/pkg/capture/live"
	"github.com/m-mizutani/capwriter/pkg/capwriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

type captureOptions struct {
	Source    capture.PacketSource
	Output    string
	Count     int
	Reference string

	// SnapshotLength overrides --snaplen unless the flag is given explicitly.
	SnapshotLength uint32
}

func deviceCommand(config *capture.Config) func(*cli.Context) error {
	return func(c *cli.Context) error {
		snapLen, err := globalSnapshotLength(c)
		if err != nil {
			return err
		}

		src, err := live.Open(c.String("interface"), int32(snapLen),
			c.Bool("promisc"), live.DefaultReadTimeout)
		if err != nil {
			return err
		}
		defer src.Close()

		return runCapture(c, config, captureOptions{
			Source: src,
			Output: c.String("output"),
			Count:  c.Int("count"),
		})
	}
}

func fileCommand(config *capture.Config) func(*cli.Context) error {
	return func(c *cli.Context) error {
		input := c.String("input")
		if input == "" {
			cli.ShowCommandHelp(c, "file")
			return fmt.Errorf("Input file is required")
		}

		src, err := capture.OpenFile(input)
		if err != nil {
			return err
		}
		defer src.Close()

		output := c.String("output")
		output = filepath.Join(filepath.Dir(output), "writer_"+filepath.Base(output))

		opt := captureOptions{
			Source:    src,
			Output:    output,
			Reference: c.String("reference"),
		}
		if !c.GlobalIsSet("snaplen") {
			opt.SnapshotLength = src.SnapshotLength()
		}

		return runCapture(c, config, opt)
	}
}

func vxlanCommand(config *capture.Config) func(*cli.Context) error {
	return func(c *cli.Context) error {
		src, err := capture.ListenVXLAN(c.Int("port"), c.Int("queue-size"))
		if err != nil {
			return err
		}
		defer src.Close()

		return runCapture(c, config, captureOptions{
			Source: src,
			Output: c.String("output"),
			Count:  c.Int("count"),
		})
	}
}

func globalSnapshotLength(c *cli.Context) (int, error) {
	n := c.GlobalInt("snaplen")
	if n <= 0 {
		return 0, fmt.Errorf("--snaplen must be positive: %d", n)
	}
	return n, nil
}

func createOutput(path string) (*os.File, error) {
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "Fail to create output file: %s", path)
	}
	// umask must not narrow the permission
	if err := fd.Chmod(0666); err != nil {
		logger.WithError(err).WithField("path", path).Warn("Fail to chmod output file")
	}
	return fd, nil
}

func runCapture(c *cli.Context, config *capture.Config, opt captureOptions) error {
	snapLen, err := globalSnapshotLength(c)
	if err != nil {
		return err
	}
	maxRetries := c.GlobalInt("max-retries")
	if maxRetries < 0 {
		return fmt.Errorf("--max-retries must not be negative: %d", maxRetries)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := capture.NewSignalCounter()
	stopping := func(os.Signal) { cancel() }
	signals.Handle(syscall.SIGINT, stopping)
	signals.Handle(syscall.SIGTERM, stopping)
	signals.Handle(syscall.SIGHUP, nil)
	signals.Handle(syscall.SIGALRM, nil)
	stopSignals := signals.Listen()
	defer stopSignals()

	writer := capwriter.NewWriter()
	writer.SnapshotLength = uint32(snapLen)
	if opt.SnapshotLength > 0 {
		writer.SnapshotLength = opt.SnapshotLength
	}
	var policy backoff.BackOff = &backoff.ZeroBackOff{}
	if maxRetries > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(maxRetries))
	}
	writer.BackOff = backoff.WithContext(policy, ctx)

	ssn := &capture.Session{
		Writer:          writer,
		Source:          opt.Source,
		Count:           opt.Count,
		ContinueOnError: c.GlobalBool("continue-on-error") || config.ContinueOnError,
	}

	if c.GlobalBool("hexdump") {
		ssn.HexDump = os.Stdout
	}

	if path := c.GlobalString("summary"); path != "" {
		fd, err := createOutput(path)
		if err != nil {
			return err
		}
		defer fd.Close()
		ssn.Inspector = capture.NewInspector(fd, opt.Source.LinkType())
		ssn.Inspector.EnableTextPayload = true
	}

	if opt.Reference != "" {
		fd, err := createOutput(opt.Reference)
		if err != nil {
			return err
		}
		defer fd.Close()
		ref, err := capture.NewReferenceDumper(fd, opt.Source.LinkType())
		if err != nil {
			return err
		}
		ssn.Reference = ref
	}

	out, err := createOutput(opt.Output)
	if err != nil {
		return err
	}

	stats, runErr := ssn.Run(ctx, out)
	if err := out.Close(); err != nil && runErr == nil {
		runErr = errors.Wrapf(err, "Fail to close output file: %s", opt.Output)
	}

	if stats != nil {
		report(os.Stdout, opt.Output, stats, signals.Counts())
	}
	if runErr != nil {
		return runErr
	}

	if args := uploaderArguments(c, config); args.AwsS3Bucket != "" {
		uploader, err := capture.NewUploader(args)
		if err != nil {
			return err
		}

		key, err := uploader.Upload(opt.Output)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"bucket": args.AwsS3Bucket, "key": key}).Info("Uploaded capture file")
	}

	return nil
}

// uploaderArguments applies command line flags over S3 settings of config.
func uploaderArguments(c *cli.Context, config *capture.Config) capture.UploaderArguments {
	args := config.UploaderArguments()
	if c.GlobalIsSet("aws-region") {
		args.AwsRegion = c.GlobalString("aws-region")
	}
	if c.GlobalIsSet("s3-bucket") {
		args.AwsS3Bucket = c.GlobalString("s3-bucket")
	}
	if c.GlobalIsSet("s3-prefix") {
		args.AwsS3Prefix = c.GlobalString("s3-prefix")
	}
	if c.GlobalBool("s3-time-key") {
		args.AwsS3AddTimeKey = true
	}
	return args
}

func report(w io.Writer, output string, stats *capture.Stats, signals map[os.Signal]int) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Captured packets         : %d\n", stats.Packets)
	fmt.Fprintf(w, "Captured length          : %d\n", stats.CapturedBytes)
	fmt.Fprintf(w, "Real length              : %d\n", stats.OriginalBytes)
	fmt.Fprintf(w, "Pcap Writer total length : %d (%s)\n",
		stats.WrittenBytes, humanize.Bytes(uint64(stats.WrittenBytes)))
	fmt.Fprintf(w, "Output size must be      : %d\n", stats.ExpectedSize())
	if stats.Skipped > 0 || stats.Clipped > 0 {
		fmt.Fprintf(w, "Skipped / clipped        : %d / %d\n", stats.Skipped, stats.Clipped)
	}

	names := make([]string, 0, len(signals))
	counts := make(map[string]int, len(signals))
	for sig, n := range signals {
		names = append(names, sig.String())
		counts[sig.String()] = n
	}
	sort.Strings(names)

	fmt.Fprintf(w, "%d signal(s) handled\n", len(names))
	for _, name := range names {
		fmt.Fprintf(w, "signal %q caught %d times.\n", name, counts[name])
	}

	fmt.Fprintf(w, "\nTotally %s written to '%s'.\n", humanize.Bytes(uint64(stats.WrittenBytes)), output)
}
