// Package stages contains ready to use transform stages for the pipeline package.
//
// Each stage is constructed for one direction and performs the forward transformation on Out
// and the inverse on In, so a sender and a receiver configure the same stage type for opposite
// directions:
//
//	p.AddLayer(pipeline.Out, stages.NewZstd(pipeline.Out))
//	p.AddLayer(pipeline.In, stages.NewZstd(pipeline.In))
//
// Zstd and Seal produce binary output that may contain the frame delimiter. Put a Base64 stage
// behind them on Out (and in front of them on In).
package stages
