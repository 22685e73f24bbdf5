package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/content-attestation-engine/cmd/flags"
	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/proof"
)

var uriFlag = &cli.StringFlag{
	Name:  "uri",
	Usage: "Locator URI of the document to attest. Derived from --content-file when omitted",
}

var digestFlag = &cli.StringFlag{
	Name:  "digest",
	Usage: "Expected SHA-256 content digest as hex. Computed from --content-file when omitted",
}

var contentFileFlag = &cli.StringFlag{
	Name:  "content-file",
	Usage: "Local copy of the document, used to compute the content digest",
}

var metadataFileFlag = &cli.StringFlag{
	Name:  "metadata-file",
	Usage: "JSON file with the metadata document to bind into the attestation",
}

var outFlag = &cli.StringFlag{
	Name:  "out",
	Usage: "Write the proof artifact to this file instead of stdout",
}

func main() {
	app := &cli.App{
		Name:  "attest",
		Usage: "Attest a document and print its proof artifact",
		Flags: append(append([]cli.Flag{
			uriFlag,
			digestFlag,
			contentFileFlag,
			metadataFileFlag,
			outFlag,
		}, flags.AttestationFlags...), flags.LogFlags...),
		Action: runAttest,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runAttest(cCtx *cli.Context) error {
	logger := flags.SetupCLILogger(cCtx)

	locator, err := resolveLocator(cCtx)
	if err != nil {
		return err
	}

	metadata, err := readMetadata(cCtx.String(metadataFileFlag.Name))
	if err != nil {
		return err
	}

	eng, err := flags.CreateEngine(cCtx, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	artifact, attErr := eng.Attest(ctx, locator, metadata)
	if artifact != nil {
		// Sealed artifacts are written even when tracking failed or
		// timed out, so a later verify run can pick up where this left off.
		if err := writeArtifact(cCtx.String(outFlag.Name), artifact); err != nil {
			return err
		}
	}
	return attErr
}

// resolveLocator builds the content locator from --uri, --digest and
// --content-file. The digest comes from --digest when given, otherwise it
// is computed from the local file.
func resolveLocator(cCtx *cli.Context) (interfaces.ContentLocator, error) {
	uri := cCtx.String(uriFlag.Name)
	digestHex := cCtx.String(digestFlag.Name)
	contentFile := cCtx.String(contentFileFlag.Name)

	var digest interfaces.Digest
	switch {
	case digestHex != "":
		var err error
		digest, err = interfaces.NewDigestFromHex(digestHex)
		if err != nil {
			return interfaces.ContentLocator{}, fmt.Errorf("invalid --%s: %w", digestFlag.Name, err)
		}
	case contentFile != "":
		content, err := os.ReadFile(contentFile)
		if err != nil {
			return interfaces.ContentLocator{}, fmt.Errorf("reading --%s: %w", contentFileFlag.Name, err)
		}
		digest = interfaces.ComputeDigest(content)
	default:
		return interfaces.ContentLocator{}, fmt.Errorf("either --%s or --%s is required", digestFlag.Name, contentFileFlag.Name)
	}

	if uri == "" {
		if contentFile == "" {
			return interfaces.ContentLocator{}, fmt.Errorf("--%s is required when no --%s is given", uriFlag.Name, contentFileFlag.Name)
		}
		abs, err := filepath.Abs(contentFile)
		if err != nil {
			return interfaces.ContentLocator{}, fmt.Errorf("resolving --%s: %w", contentFileFlag.Name, err)
		}
		uri = "file://" + abs
	}

	return interfaces.NewContentLocator(uri, digest)
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

func writeArtifact(path string, artifact *interfaces.ProofArtifact) error {
	data, err := proof.Encode(artifact)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing proof artifact: %w", err)
	}
	return nil
}
