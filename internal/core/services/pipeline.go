// Package services wires the core pipeline stages into the driving
// ports: training orchestration, job coordination and inference.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/classify"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/cluster"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driven"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/embed"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/evaluate"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/preprocess"
)

// embedWorkers bounds the parallelism of the embedding stage.
const embedWorkers = 4

// TrainingPipeline runs the staged training flow for one job:
// preprocessing, embedding, clustering, training, evaluation and
// packaging. Cancellation is honoured between stages, and a cancelled
// or failed run never publishes a bundle.
type TrainingPipeline struct {
	datasets driven.DatasetStore
	bundles  driven.BundleStore
}

// NewTrainingPipeline wires the pipeline to its stores.
func NewTrainingPipeline(datasets driven.DatasetStore, bundles driven.BundleStore) *TrainingPipeline {
	return &TrainingPipeline{datasets: datasets, bundles: bundles}
}

// Run executes every stage for the job and returns the published
// bundle version. onStage is invoked as each stage begins; it may be
// nil.
func (p *TrainingPipeline) Run(ctx context.Context, job *domain.TrainingJob, onStage func(stage string)) (string, error) {
	enter := func(stage string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Section(stage)
		if onStage != nil {
			onStage(stage)
		}
		return nil
	}

	if err := enter(domain.StagePreprocess); err != nil {
		return "", err
	}
	reads, err := p.datasets.GetReads(ctx, job.DatasetID)
	if err != nil {
		return "", fmt.Errorf("loading dataset %s: %w", job.DatasetID, err)
	}
	pre, err := preprocess.New(job.Params.Preprocess)
	if err != nil {
		return "", err
	}
	tokens, rejected := pre.CanonicalizeBatch(reads)
	for _, item := range rejected {
		logger.Debug("pipeline: read %s rejected: %v", item.ReadID, item.Err)
	}
	logger.Info("pipeline: %d/%d reads passed quality control", len(tokens), len(reads))
	if len(tokens) == 0 {
		return "", fmt.Errorf("%w: no reads passed quality control", domain.ErrInvalidInput)
	}

	if err := enter(domain.StageEmbed); err != nil {
		return "", err
	}
	embedder := embed.New(job.Params.Embed)
	vectors, err := embedBatches(ctx, embedder, tokens)
	if err != nil {
		return "", err
	}

	if err := enter(domain.StageCluster); err != nil {
		return "", err
	}
	clusterer := cluster.New(job.Params.Cluster)
	clustering, err := clusterer.Cluster(vectors)
	if err != nil {
		return "", err
	}
	cluster.ScoreNovelty(&clustering)
	if clustering.Degenerate {
		logger.Warn("pipeline: clustering is degenerate, every point is noise")
	}

	if err := enter(domain.StageTrain); err != nil {
		return "", err
	}
	names := make([]string, 0, len(vectors))
	for _, v := range vectors {
		names = append(names, v.Label)
	}
	labels := classify.BuildLabelMap(names)
	examples := classify.BuildExamples(vectors, clustering, labels)

	trainer := classify.NewTrainer(job.Params.Train)
	if err := trainer.CheckCounts(examples); err != nil {
		return "", err
	}
	train, holdout := trainer.Split(examples)
	weights, err := trainer.Fit(ctx, train)
	if err != nil {
		return "", err
	}
	calibration := classify.FitTemperature(weights, holdout)

	if err := enter(domain.StageEvaluate); err != nil {
		return "", err
	}
	predictor, err := classify.NewPredictor(weights, calibration, labels)
	if err != nil {
		return "", err
	}
	report, err := evaluate.Report(predictor, holdout, clustering, vectors)
	if err != nil {
		return "", err
	}

	if err := enter(domain.StagePackage); err != nil {
		return "", err
	}
	bundle := &domain.ModelBundle{
		Preprocess:      pre.Config(),
		EmbedderVersion: embedder.Version(),
		Embed:           embedder.Params(),
		Classifier:      weights,
		Calibration:     calibration,
		Labels:          labels,
		Clusters:        cluster.Metadata(clustering, vectors),
		Eval:            report,
		CreatedAt:       time.Now().UTC(),
	}
	version, err := p.bundles.Publish(ctx, bundle)
	if err != nil {
		return "", fmt.Errorf("publishing bundle: %w", err)
	}

	logger.Info("pipeline: job %s published bundle %s", job.ID, version)
	return version, nil
}

// embedBatches encodes token sequences through a bounded worker pool,
// preserving input order.
func embedBatches(ctx context.Context, embedder *embed.Embedder, tokens []domain.TokenSequence) ([]domain.EmbeddingVector, error) {
	batchSize := embedder.Params().MaxBatchSize
	type batch struct {
		start int
		seqs  []domain.TokenSequence
	}

	var batches []batch
	for start := 0; start < len(tokens); start += batchSize {
		end := start + batchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batches = append(batches, batch{start: start, seqs: tokens[start:end]})
	}

	vectors := make([]domain.EmbeddingVector, len(tokens))
	work := make(chan batch)
	errs := make(chan error, embedWorkers)

	var wg sync.WaitGroup
	for w := 0; w < embedWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range work {
				out, err := embedder.EmbedBatch(ctx, b.seqs)
				if err != nil {
					select {
					case errs <- err:
					default:
					}
					return
				}
				copy(vectors[b.start:], out)
			}
		}()
	}

feed:
	for _, b := range batches {
		select {
		case work <- b:
		case err := <-errs:
			close(work)
			wg.Wait()
			return nil, err
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case err := <-errs:
		return nil, err
	default:
	}
	return vectors, nil
}
