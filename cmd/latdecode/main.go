package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	paddlespeech "github.com/skyscope-sentinel/PaddleSpeech"
	"github.com/skyscope-sentinel/PaddleSpeech/decoder"
)

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// readLikelihoods reads a dense log-likelihood matrix: one frame per line,
// space-separated values, column l-1 holding label l.
func readLikelihoods(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var probs [][]float64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, len(fields))
		for i, s := range fields {
			row[i], err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad value %q: %w", path, lineNum, s, err)
			}
		}
		probs = append(probs, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return probs, nil
}

func main() {
	// Optional .env next to the binary provides defaults for the flags.
	_ = godotenv.Load()

	fstPath := flag.String("fst", envString("LATDECODE_FST", ""), "path to decoding graph (AT&T text format)")
	wordsPath := flag.String("words", envString("LATDECODE_WORDS", ""), "path to word symbol table")
	likesPath := flag.String("likes", envString("LATDECODE_LIKES", ""), "path to log-likelihood matrix (one frame per line)")
	beam := flag.Float64("beam", envFloat("LATDECODE_BEAM", 16.0), "decoding beam width")
	latticeBeam := flag.Float64("lattice-beam", envFloat("LATDECODE_LATTICE_BEAM", 8.0), "lattice retention beam")
	maxActive := flag.Int("max-active", envInt("LATDECODE_MAX_ACTIVE", 7000), "maximum active tokens per frame")
	pruneInterval := flag.Int("prune-interval", envInt("LATDECODE_PRUNE_INTERVAL", 25), "frames between lattice prunes")
	acousticScale := flag.Float64("acoustic-scale", envFloat("LATDECODE_ACOUSTIC_SCALE", 1.0), "acoustic log-likelihood scale")
	nbest := flag.Int("n", envInt("LATDECODE_NBEST", 1), "number of hypotheses to print")
	partialEvery := flag.Int("partial-every", 0, "print a partial result every N frames (0=off)")
	verbose := flag.Bool("v", false, "verbose output")

	flag.Parse()

	if *fstPath == "" || *wordsPath == "" || *likesPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: latdecode -fst GRAPH -words SYMTAB -likes MATRIX")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := decoder.Config{
		Beam:          *beam,
		LatticeBeam:   *latticeBeam,
		MaxActive:     *maxActive,
		PruneInterval: *pruneInterval,
		AcousticScale: *acousticScale,
	}
	dec, err := paddlespeech.New(*fstPath, *wordsPath,
		paddlespeech.WithConfig(cfg),
		paddlespeech.WithNBest(*nbest),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	probs, err := readLikelihoods(*likesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sp := decoder.NewMatrixScores(probs, *acousticScale)
	engine := dec.Engine()
	dec.Reset()
	for {
		advanced, err := engine.AdvanceOneFrame(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !advanced {
			break
		}
		if *partialEvery > 0 && engine.NumFramesDecoded()%*partialEvery == 0 {
			if partial, err := dec.GetPartialResult(); err == nil {
				fmt.Fprintf(os.Stderr, "partial @%d: %s\n", engine.NumFramesDecoded(), partial)
			}
		}
	}

	if err := dec.Finalize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *nbest <= 1 {
		text, err := dec.GetFinalBestPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(text)
	} else {
		entries, err := dec.GetNBestPath(*nbest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for i, e := range entries {
			fmt.Printf("%d\t%.4f\t%s\n", i+1, e.Cost, e.Text)
		}
	}

	if *verbose {
		res, err := dec.GetFinalResult()
		if err == nil {
			fmt.Fprintf(os.Stderr, "Frames: %d  Cost: %.4f  Confidence: %.3f\n",
				dec.NumFramesDecoded(), res.Cost, res.Confidence)
			for _, w := range res.Words {
				fmt.Fprintf(os.Stderr, "  [%d-%d] %s\n", w.StartFrame, w.EndFrame, w.Text)
			}
		}
	}
}
