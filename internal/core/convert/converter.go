package convert

import "context"

// Converter transcodes a source artifact into the target output file. It is
// opaque to the pipeline: long-running, resource-intensive, and either
// produces the output path or fails.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}
