package convnext

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/strata-ml/strata/internal/datasets"
	"github.com/strata-ml/strata/internal/serialization"
	"github.com/strata-ml/strata/internal/tensor"
)

// ErrNoPretrained indicates the requested variant has no published
// checkpoint for the requested pretraining corpus. It is returned before
// any network access happens.
var ErrNoPretrained = errors.New("convnext: no pretrained checkpoint for variant")

// PretrainedURL returns the checkpoint URL for the variant, or
// ErrNoPretrained when none is published for the requested corpus.
func (c Config) PretrainedURL(in22k bool) (string, error) {
	url := c.URL1K
	corpus := "in1k"
	if in22k {
		url = c.URL22K
		corpus = "in22k"
	}
	if url == "" {
		return "", fmt.Errorf("%w: %s (%s)", ErrNoPretrained, c.Name, corpus)
	}
	return url, nil
}

// LoadCheckpoint loads a .strata checkpoint file into the model. State
// dicts whose keys are nested under a "model." prefix are accepted
// alongside flat ones. Any shape mismatch fails the load.
func LoadCheckpoint[B tensor.Backend](m *Backbone[B], path string) error {
	r, err := serialization.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	sd, err := r.ReadStateDict(tensor.CPU)
	if err != nil {
		return fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	return m.LoadStateDict(stripModelPrefix(sd))
}

// stripModelPrefix removes a uniform "model." key prefix, present in
// checkpoints that serialize a whole training state rather than bare
// weights. Mixed dicts are left untouched.
func stripModelPrefix(sd map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	if len(sd) == 0 {
		return sd
	}
	for name := range sd {
		if !strings.HasPrefix(name, "model.") {
			return sd
		}
	}
	out := make(map[string]*tensor.RawTensor, len(sd))
	for name, raw := range sd {
		out[strings.TrimPrefix(name, "model.")] = raw
	}
	return out
}

// BuildPretrained constructs a named variant and loads its published
// checkpoint, downloading it into cacheDir if absent. The head is sized to
// the checkpoint's corpus, so numClasses must match it (1000 for in1k
// checkpoints, 21841 for in22k). A nil fetcher uses default HTTP settings.
func BuildPretrained[B tensor.Backend](ctx context.Context, name string, numClasses int, in22k bool, cacheDir string, fetcher *datasets.Fetcher, backend B) (*Backbone[B], error) {
	c, err := GetConfig(name)
	if err != nil {
		return nil, err
	}
	url, err := c.PretrainedURL(in22k)
	if err != nil {
		return nil, err
	}
	if fetcher == nil {
		fetcher = datasets.NewFetcher(nil)
	}
	path, err := fetcher.Download(ctx, url, "", cacheDir)
	if err != nil {
		return nil, fmt.Errorf("download checkpoint for %s: %w", name, err)
	}

	m := New(c.Options(numClasses), backend)
	if err := LoadCheckpoint(m, path); err != nil {
		return nil, err
	}
	return m, nil
}
