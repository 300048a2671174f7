package cmd

import (
	"log/slog"

	"github.com/MrWong99/callmark/internal/config"
	"github.com/MrWong99/callmark/pkg/morph"
	"github.com/MrWong99/callmark/pkg/morph/snowball"
	"github.com/MrWong99/callmark/pkg/morph/steos"
)

// registerBuiltinLemmatizers wires the lemmatizers that ship with callmark
// into reg.
//
// Options:
//
//	steos:    dict_path (string), no_prediction (bool)
//	snowball: language (string), stem_stop_words (bool)
func registerBuiltinLemmatizers(reg *config.Registry) {
	reg.Register("none", func(config.MorphologyConfig) (morph.Lemmatizer, error) {
		return morph.Identity, nil
	})

	reg.Register("steos", func(mc config.MorphologyConfig) (morph.Lemmatizer, error) {
		var opts []steos.Option
		if path := config.OptString(mc.Options, "dict_path"); path != "" {
			opts = append(opts, steos.WithDictPath(path))
		}
		if config.OptBool(mc.Options, "no_prediction") {
			opts = append(opts, steos.WithoutPrediction())
		}
		return steos.New(opts...)
	})

	reg.Register("snowball", func(mc config.MorphologyConfig) (morph.Lemmatizer, error) {
		var opts []snowball.Option
		if lang := config.OptString(mc.Options, "language"); lang != "" {
			opts = append(opts, snowball.WithLanguage(lang))
		}
		if config.OptBool(mc.Options, "stem_stop_words") {
			opts = append(opts, snowball.WithStopWordStemming())
		}
		return snowball.New(opts...)
	})
}

// buildLemmatizer creates the configured lemmatizer.
func (c *cli) buildLemmatizer() (morph.Lemmatizer, error) {
	l, err := c.registry.Create(c.cfg.Morphology)
	if err != nil {
		return nil, err
	}
	slog.Info("lemmatizer created", "name", c.cfg.Morphology.Name)
	return l, nil
}
