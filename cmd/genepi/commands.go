package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/service"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Resolve a gene and variant to clinician reports and epilepsy syndromes",
	RunE: func(cmd *cobra.Command, args []string) error {
		gene, _ := cmd.Flags().GetString("gene")
		variant, _ := cmd.Flags().GetString("variant")
		if strings.TrimSpace(gene) == "" || strings.TrimSpace(variant) == "" {
			return fmt.Errorf("both --gene and --variant are required")
		}

		application, _, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		res, err := application.Pipeline.LookupVariant(cmd.Context(), strings.TrimSpace(gene), strings.TrimSpace(variant))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(out, res)
		}
		renderLookup(out, gene, variant, res)

		if treat, _ := cmd.Flags().GetBool("treat"); treat {
			patientContext := service.PatientContext(gene, variant)
			for _, syndrome := range res.Syndromes {
				fmt.Fprintln(out, application.Pipeline.RecommendTreatment(cmd.Context(), syndrome, patientContext))
			}
		}
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend treatment for one epilepsy syndrome",
	RunE: func(cmd *cobra.Command, args []string) error {
		syndrome, _ := cmd.Flags().GetString("syndrome")
		patientContext, _ := cmd.Flags().GetString("context")
		if strings.TrimSpace(syndrome) == "" {
			return fmt.Errorf("--syndrome is required")
		}

		application, _, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		fmt.Fprintln(cmd.OutOrStdout(), application.Pipeline.RecommendTreatment(cmd.Context(), syndrome, patientContext))
		return nil
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse [description...]",
	Short: "Extract gene, variant and phenotypes from a free-text description",
	Long:  `parse reads the description from its arguments, or from stdin when none are given or the only argument is "-".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		description, err := readInput(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		application, _, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		return writeJSON(cmd.OutOrStdout(), application.Pipeline.ParseDescription(cmd.Context(), description))
	},
}

var runCmd = &cobra.Command{
	Use:   "run [description...]",
	Short: "Run extraction, variant resolution and treatment synthesis on a description",
	RunE: func(cmd *cobra.Command, args []string) error {
		description, err := readInput(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		application, _, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		state, err := application.Pipeline.Run(cmd.Context(), description)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(out, state)
		}
		renderState(out, state)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, manager, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()
		return application.ServeHTTP(cmd.Context(), manager)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, _, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()
		return application.ServeMCP(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of genepi",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "genepi %s\n", version)
	},
}

func init() {
	lookupCmd.Flags().String("gene", "", "gene symbol, e.g. SCN1A")
	lookupCmd.Flags().String("variant", "", "variant notation, e.g. c.5347G>A")
	lookupCmd.Flags().Bool("json", false, "print the resolution as JSON")
	lookupCmd.Flags().Bool("treat", false, "also recommend treatment for every resolved syndrome")

	recommendCmd.Flags().String("syndrome", "", "epilepsy syndrome name")
	recommendCmd.Flags().String("context", "", "patient context passed to the guideline query")

	runCmd.Flags().Bool("json", false, "print the full workflow state as JSON")

	rootCmd.AddCommand(lookupCmd, recommendCmd, parseCmd, runCmd, serveCmd, mcpCmd, versionCmd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderLookup(w io.Writer, gene, variant string, res service.Resolution) {
	fmt.Fprintf(w, "# %s %s\n\n", gene, variant)
	if len(res.Reports) == 0 {
		fmt.Fprintln(w, "No ClinVar records found.")
		return
	}
	for _, r := range res.Reports {
		fmt.Fprintf(w, "## %s\n\n%s\n\n", r.Title, r.Report)
	}
	if len(res.Syndromes) > 0 {
		fmt.Fprintf(w, "Associated syndromes: %s\n\n", strings.Join(res.Syndromes, ", "))
	} else {
		fmt.Fprintln(w, "No epilepsy syndromes associated with this variant.")
	}
}

func renderState(w io.Writer, state domain.WorkflowState) {
	fmt.Fprintf(w, "Gene: %s\nVariant: %s\n", state.Parsed.Gene, state.Parsed.Variant)
	if len(state.Parsed.Phenotypes) > 0 {
		fmt.Fprintf(w, "Phenotypes: %s\n", strings.Join(state.Parsed.Phenotypes, ", "))
	}
	fmt.Fprintln(w)
	for _, r := range state.DoctorReports {
		fmt.Fprintf(w, "## %s\n\n%s\n\n", r.Title, r.Report)
	}
	fmt.Fprintln(w, state.Treatments)
}
