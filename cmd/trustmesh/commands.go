package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/config"
)

func withEngine(ctx context.Context, cfg *config.Config, stderr io.Writer, fn func(*subsystems) int) int {
	sub, err := buildSubsystems(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer sub.Close(ctx)
	return fn(sub)
}

func runIssueCmd(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("issue", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		farmID     string
		crop       string
		jsonOutput bool
	)
	cmd.StringVar(&farmID, "farm", "", "Farm node ID (REQUIRED)")
	cmd.StringVar(&crop, "crop", "", "Crop name (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if farmID == "" || crop == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --farm and --crop are required")
		return 2
	}

	return withEngine(ctx, cfg, stderr, func(sub *subsystems) int {
		res, err := sub.engine.IssueCertificate(ctx, farmID, crop)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "%sIssuance failed:%s %v\n", ColorRed, ColorReset, err)
			return 1
		}
		if jsonOutput {
			return writeJSON(stdout, stderr, res)
		}

		printCertificate(stdout, res.Certificate)
		_, _ = fmt.Fprintf(stdout, "  %-14s %d\n", "Stress days", res.StressDays)
		if res.ArchiveRef != "" {
			_, _ = fmt.Fprintf(stdout, "  %-14s %s\n", "Archive", res.ArchiveRef)
		}
		_, _ = fmt.Fprintf(stdout, "\n%sAgent log:%s\n", ColorBold, ColorReset)
		for _, line := range res.AgenticLog {
			_, _ = fmt.Fprintf(stdout, "  %s\n", line)
		}
		return 0
	})
}

func runLatestCmd(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("latest", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOutput := cmd.Bool("json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	return withEngine(ctx, cfg, stderr, func(sub *subsystems) int {
		latest, err := sub.engine.LatestCertificate(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if latest == nil {
			_, _ = fmt.Fprintln(stderr, "No certificate has been issued yet")
			return 1
		}
		if *jsonOutput {
			return writeJSON(stdout, stderr, latest)
		}
		printCertificate(stdout, *latest)
		return 0
	})
}

func runHistoryCmd(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("history", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	farmID := cmd.String("farm", "", "Only show this farm node")
	jsonOutput := cmd.Bool("json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	return withEngine(ctx, cfg, stderr, func(sub *subsystems) int {
		var (
			certs []certificate.Certificate
			err   error
		)
		if *farmID != "" {
			certs, err = sub.engine.FarmCertificates(ctx, *farmID)
		} else {
			certs, err = sub.engine.ListCertificates(ctx)
		}
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if *jsonOutput {
			if certs == nil {
				certs = []certificate.Certificate{}
			}
			return writeJSON(stdout, stderr, certs)
		}
		for _, c := range certs {
			_, _ = fmt.Fprintf(stdout, "%s  %s  %-10s %-12s %3d  %s\n",
				c.IssuedAt.Format("2006-01-02T15:04:05Z"), c.CertificateID, c.FarmNodeID,
				c.CurrentHarvest.Crop, c.CurrentHarvest.TrustScore, c.CurrentHarvest.Grade)
		}
		return 0
	})
}

func runAttestCmd(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("attest", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOutput := cmd.Bool("json", false, "Output certificate id and token as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "Error: unexpected arguments: %v\n", cmd.Args())
		return 2
	}

	cfg.AttestationEnabled = true
	return withEngine(ctx, cfg, stderr, func(sub *subsystems) int {
		a, err := sub.engine.LatestAttestation(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if *jsonOutput {
			return writeJSON(stdout, stderr, a)
		}
		_, _ = fmt.Fprintln(stdout, a.Token)
		return 0
	})
}

func runVerifyCmd(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	token := cmd.String("token", "", "Attestation token (REQUIRED)")
	jsonOutput := cmd.Bool("json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *token == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --token is required")
		return 2
	}

	cfg.AttestationEnabled = true
	return withEngine(ctx, cfg, stderr, func(sub *subsystems) int {
		v, err := sub.engine.VerifyAttestation(ctx, *token)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if *jsonOutput {
			if code := writeJSON(stdout, stderr, v); code != 0 {
				return code
			}
		} else if v.Valid {
			_, _ = fmt.Fprintf(stdout, "%s✓ VERIFIED%s %s (%s)\n", ColorGreen, ColorReset, v.Claims.CertificateID, v.Claims.Grade)
		} else {
			_, _ = fmt.Fprintf(stdout, "%s✗ REJECTED%s %s\n", ColorRed, ColorReset, v.Reason)
		}
		if !v.Valid {
			return 1
		}
		return 0
	})
}

func printCertificate(w io.Writer, c certificate.Certificate) {
	_, _ = fmt.Fprintf(w, "%s%s%s\n", ColorBold+ColorGreen, c.CertificateID, ColorReset)
	_, _ = fmt.Fprintf(w, "  %-14s %s\n", "Farm node", c.FarmNodeID)
	_, _ = fmt.Fprintf(w, "  %-14s %s\n", "Crop", c.CurrentHarvest.Crop)
	_, _ = fmt.Fprintf(w, "  %-14s %d\n", "Trust score", c.CurrentHarvest.TrustScore)
	_, _ = fmt.Fprintf(w, "  %-14s %s\n", "Grade", c.CurrentHarvest.Grade)
	_, _ = fmt.Fprintf(w, "  %-14s %d harvests, avg %d\n", "Reputation",
		c.FarmerReputation.TotalHarvestsVerified, c.FarmerReputation.AverageScore)
	_, _ = fmt.Fprintf(w, "  %-14s %s\n", "Hash", c.BlockchainHash)
	_, _ = fmt.Fprintf(w, "  %-14s %s\n", "Issued", c.IssuedAt.Format("2006-01-02T15:04:05.000Z07:00"))
}

func writeJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
