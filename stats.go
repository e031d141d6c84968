package main

import (
	"sort"
	"sync"

	"voxy/transcriber"
)

// Latency accounting across the sessions of one process run. The TUI
// expert view renders the percentiles; the tray re-copies lastText.
var (
	transcriptionsMu sync.Mutex
	transcriptions   []TranscriptionRecord
	percentileStats  PercentileStats
	lastText         string
)

type PercentileStats struct {
	TotalMs  [5]float64 // min, p50, p90, p95, max
	EncodeMs [5]float64
	TLSMs    [5]float64
	CompPct  [5]float64
}

type TranscriptionRecord struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
	MemoryAllocMB    float64
	MemoryPeakMB     float64
}

func recordTranscription(result transcriber.SessionResult) {
	bs := result.Batch
	if bs == nil {
		return
	}
	record := TranscriptionRecord{
		AudioLengthS:     bs.AudioLengthS,
		RawSizeKB:        bs.RawSizeKB,
		CompressedSizeKB: bs.CompressedSizeKB,
		CompressionPct:   bs.CompressionPct,
		EncodeTimeMs:     bs.EncodeTimeMs,
		DNSTimeMs:        bs.DNSTimeMs,
		TLSTimeMs:        bs.TLSTimeMs,
		TTFBMs:           bs.TTFBMs,
		TotalTimeMs:      bs.TotalTimeMs,
		MemoryAllocMB:    result.MemoryAllocMB,
		MemoryPeakMB:     result.MemoryPeakMB,
	}

	transcriptionsMu.Lock()
	transcriptions = append(transcriptions, record)
	updatePercentileStats()
	if !result.NoSpeech {
		lastText = result.Text
	}
	transcriptionsMu.Unlock()
}

func transcriptionCount() int {
	transcriptionsMu.Lock()
	defer transcriptionsMu.Unlock()
	return len(transcriptions)
}

func lastTranscription() string {
	transcriptionsMu.Lock()
	defer transcriptionsMu.Unlock()
	return lastText
}

func percentileSnapshot() PercentileStats {
	transcriptionsMu.Lock()
	defer transcriptionsMu.Unlock()
	return percentileStats
}

// updatePercentileStats recomputes the summary. Caller holds
// transcriptionsMu.
func updatePercentileStats() {
	n := len(transcriptions)
	if n == 0 {
		return
	}

	extract := func(fn func(TranscriptionRecord) float64) []float64 {
		vals := make([]float64, n)
		for i, r := range transcriptions {
			vals[i] = fn(r)
		}
		sort.Float64s(vals)
		return vals
	}

	percentile := func(sorted []float64, p float64) float64 {
		idx := int(float64(len(sorted)-1) * p)
		return sorted[idx]
	}

	calcStats := func(sorted []float64) [5]float64 {
		return [5]float64{
			sorted[0],
			percentile(sorted, 0.50),
			percentile(sorted, 0.90),
			percentile(sorted, 0.95),
			sorted[len(sorted)-1],
		}
	}

	percentileStats.TotalMs = calcStats(extract(func(r TranscriptionRecord) float64 { return r.TotalTimeMs }))
	percentileStats.EncodeMs = calcStats(extract(func(r TranscriptionRecord) float64 { return r.EncodeTimeMs }))
	percentileStats.TLSMs = calcStats(extract(func(r TranscriptionRecord) float64 { return r.TLSTimeMs }))
	percentileStats.CompPct = calcStats(extract(func(r TranscriptionRecord) float64 { return r.CompressionPct }))
}
