package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/service"
)

func TestReadInput(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		want    string
		wantErr bool
	}{
		{"args joined", []string{"SCN1A", "c.5347G>A"}, "", "SCN1A c.5347G>A", false},
		{"dash reads stdin", []string{"-"}, "  toddler with seizures \n", "toddler with seizures", false},
		{"no args reads stdin", nil, "case text", "case text", false},
		{"empty stdin", nil, "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readInput(tt.args, strings.NewReader(tt.stdin))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderLookup(t *testing.T) {
	var buf bytes.Buffer
	renderLookup(&buf, "SCN1A", "c.5347G>A", service.Resolution{
		Reports:   []domain.DoctorReport{{RecordID: "68106", Title: "NM_001165963.4(SCN1A):c.5347G>A", Report: "1. Variant Summary"}},
		Syndromes: []string{"Dravet syndrome"},
	})
	assert.Contains(t, buf.String(), "## NM_001165963.4(SCN1A):c.5347G>A\n\n1. Variant Summary")
	assert.Contains(t, buf.String(), "Associated syndromes: Dravet syndrome")

	buf.Reset()
	renderLookup(&buf, "SCN1A", "c.1A>G", service.Resolution{})
	assert.Contains(t, buf.String(), "No ClinVar records found.")
}

func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"lookup without variant", []string{"lookup", "--gene", "SCN1A"}},
		{"recommend without syndrome", []string{"recommend"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetErr(&out)
			rootCmd.SetArgs(tt.args)
			assert.Error(t, rootCmd.Execute())
		})
	}
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "genepi dev\n", out.String())
}
