package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

// printResult renders a result as indented JSON or as human readable text
func printResult(w io.Writer, result entities.OperationResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Transcript != "" && result.Operation != entities.OpDownloadConfig {
		fmt.Fprintln(w, result.Transcript)
		fmt.Fprintln(w)
	}

	if result.State != nil {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VLAN\tNAME")
		for _, v := range result.State.Vlans {
			fmt.Fprintf(tw, "%s\t%s\n", v.ID, v.Name)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if result.State.Hostname != "" {
			fmt.Fprintf(w, "Hostname: %s\n", result.State.Hostname)
		}
	}
	if result.Filename != "" {
		fmt.Fprintf(w, "File: %s\n", result.Filename)
	}

	if result.Success {
		_, err := fmt.Fprintf(w, "OK [%s] %s\n", result.OperationID, result.Message)
		return err
	}
	_, err := fmt.Fprintf(w, "FAILED [%s] %s: %s\n", result.OperationID, result.ErrorKind, result.Message)
	return err
}
