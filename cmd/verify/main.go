package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/content-attestation-engine/cmd/flags"
	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/proof"
)

var artifactFlag = &cli.StringFlag{
	Name:     "artifact",
	Required: true,
	Usage:    "Proof artifact JSON file to verify",
}

var contentFileFlag = &cli.StringFlag{
	Name:  "content-file",
	Usage: "Local copy of the document. Fetched through --storage-backend when omitted",
}

var metadataFileFlag = &cli.StringFlag{
	Name:  "metadata-file",
	Usage: "JSON file with the original metadata document, enables the metadata digest stage",
}

func main() {
	app := &cli.App{
		Name:  "verify",
		Usage: "Re-derive a proof artifact and print a stage-by-stage verdict",
		Flags: append([]cli.Flag{
			artifactFlag,
			contentFileFlag,
			metadataFileFlag,
			flags.StorageBackendFlag,
			flags.LedgerFlag,
			flags.RequiredDepthFlag,
			flags.OracleSignerFlag,
		}, flags.LogFlags...),
		Action: runVerify,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runVerify(cCtx *cli.Context) error {
	logger := flags.SetupCLILogger(cCtx)

	raw, err := os.ReadFile(cCtx.String(artifactFlag.Name))
	if err != nil {
		return fmt.Errorf("reading --%s: %w", artifactFlag.Name, err)
	}
	artifact, err := proof.Decode(raw)
	if err != nil {
		return err
	}

	metadata, err := readMetadata(cCtx.String(metadataFileFlag.Name))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	content, err := loadContent(ctx, cCtx, artifact, logger)
	if err != nil {
		return err
	}

	factory, err := flags.CreateLedgerFactory(cCtx, logger)
	if err != nil {
		return err
	}
	defer factory.Close()

	v, err := flags.CreateVerifier(cCtx, factory, logger)
	if err != nil {
		return err
	}

	report, err := v.Verify(ctx, artifact, content, metadata)
	if err != nil {
		return err
	}

	renderStages(os.Stderr, report)
	fmt.Printf("%s %s\n", report.DocumentID, report.Verdict)

	if !report.Verified() {
		return cli.Exit("", 1)
	}
	return nil
}

// loadContent returns the document bytes, preferring a local file over a
// fetch through the configured storage backends.
func loadContent(ctx context.Context, cCtx *cli.Context, artifact *interfaces.ProofArtifact, logger *slog.Logger) ([]byte, error) {
	if path := cCtx.String(contentFileFlag.Name); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading --%s: %w", contentFileFlag.Name, err)
		}
		return content, nil
	}

	if len(cCtx.StringSlice(flags.StorageBackendFlag.Name)) == 0 {
		return nil, fmt.Errorf("either --%s or --%s is required to obtain the document", contentFileFlag.Name, flags.StorageBackendFlag.Name)
	}
	source, err := flags.CreateContentSource(cCtx, logger)
	if err != nil {
		return nil, err
	}
	return source.Fetch(ctx, artifact.Locator)
}

func readMetadata(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading --%s: %w", metadataFileFlag.Name, err)
	}
	var metadata any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("parsing --%s: %w", metadataFileFlag.Name, err)
	}
	return metadata, nil
}

func renderStages(w io.Writer, report *interfaces.VerificationReport) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Stage", "Status", "Detail"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, stage := range report.Stages {
		table.Append([]string{stage.Stage, strings.ToUpper(string(stage.Status)), stageDetail(stage)})
	}
	table.Render()
}

func stageDetail(stage interfaces.StageResult) string {
	if stage.Expected == "" && stage.Actual == "" {
		return stage.Detail
	}
	mismatch := fmt.Sprintf("expected %s, actual %s", stage.Expected, stage.Actual)
	if stage.Detail == "" {
		return mismatch
	}
	return stage.Detail + " (" + mismatch + ")"
}
