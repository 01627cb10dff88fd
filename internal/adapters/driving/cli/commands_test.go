package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

func TestTrainCmd_Use(t *testing.T) {
	assert.Equal(t, "train [dataset-id]", trainCmd.Use)
}

func TestTrainCmd_RequiresDatasetID(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"train"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestTrainCmd_FlagDefaults(t *testing.T) {
	flag := trainCmd.Flags().Lookup("epochs")
	require.NotNil(t, flag)
	assert.Equal(t, "200", flag.DefValue)

	flag = trainCmd.Flags().Lookup("kmer")
	require.NotNil(t, flag)
	assert.Equal(t, "6", flag.DefValue)

	flag = trainCmd.Flags().Lookup("collapse-duplicates")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestTrainParamsAppliesOverrides(t *testing.T) {
	origEpochs, origK := trainEpochs, trainKmer
	defer func() { trainEpochs, trainKmer = origEpochs, origK }()

	trainEpochs = 50
	trainKmer = 4
	params := trainParams()

	assert.Equal(t, 50, params.Train.Epochs)
	assert.Equal(t, 4, params.Preprocess.K)
	assert.Equal(t, domain.DefaultEmbedParams(), params.Embed)
}

func TestClassifyCmd_Use(t *testing.T) {
	assert.Equal(t, "classify [fasta-file]", classifyCmd.Use)
}

func TestClassifyCmd_HasBundleFlag(t *testing.T) {
	flag := classifyCmd.Flags().Lookup("bundle")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestJobsCmd_Subcommands(t *testing.T) {
	names := make([]string, 0, 3)
	for _, sub := range jobsCmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "list")
	assert.Contains(t, names, "status")
	assert.Contains(t, names, "cancel")
}

func TestIngestCmd_RequiresFile(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	assert.Error(t, err)
}

func TestServeCmd_HasAddrFlag(t *testing.T) {
	flag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, flag)
}
