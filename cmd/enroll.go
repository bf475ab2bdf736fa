package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognizer"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <dataset-dir>",
	Short: "Build the local face gallery from labelled photos",
	Long: `Compute a face embedding for every photo in a dataset directory and store
it in the local gallery used by RECOGNIZER_MODE=gallery.

The dataset has one subdirectory per student, named by the label the
recognizer should report (usually the roster identifier):

  dataset/
    P1/
      01.jpg
      02.jpg
    P2/
      01.jpg

The largest face of each photo is enrolled. Photos without a face are skipped.

Examples:
  face-attendance enroll ./dataset
  face-attendance enroll ./dataset --append --concurrency 8`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Bool("append", false, "Add to the existing gallery instead of replacing it")
	enrollCmd.Flags().Int("concurrency", 4, "Number of parallel embedding requests")
}

// enrollImage is one labelled photo of a dataset.
type enrollImage struct {
	Label string
	Path  string
}

// collectEnrollImages lists the photos of every label directory in dir,
// sorted by label and then by path. Hidden entries are ignored.
func collectEnrollImages(dir string) ([]enrollImage, error) {
	labels, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	var images []enrollImage
	for _, l := range labels {
		if !l.IsDir() || strings.HasPrefix(l.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, l.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading label %s: %w", l.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || strings.HasPrefix(f.Name(), ".") || !capture.IsImageFile(f.Name()) {
				continue
			}
			images = append(images, enrollImage{Label: l.Name(), Path: filepath.Join(dir, l.Name(), f.Name())})
		}
	}
	slices.SortFunc(images, func(a, b enrollImage) int {
		if c := strings.Compare(a.Label, b.Label); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return images, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	images, err := collectEnrollImages(args[0])
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no images found in %s", args[0])
	}

	g := gallery.New()
	if mustGetBool(cmd, "append") {
		if g, err = gallery.Load(cfg.Paths.Gallery); err != nil {
			return err
		}
		fmt.Printf("Appending to gallery with %d embeddings\n", g.Len())
	}

	client := recognizer.NewClient(cfg.Recognizer.URL)
	fmt.Printf("Enrolling %d photos using %s\n", len(images), cfg.Recognizer.URL)

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		mu                             sync.Mutex
		successCount, noFace, errCount int
		failures                       []string
	)
	fail := func(img enrollImage, err error) {
		mu.Lock()
		errCount++
		failures = append(failures, fmt.Sprintf("%s: %v", img.Path, err))
		mu.Unlock()
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, img := range images {
		wg.Add(1)
		go func(img enrollImage) {
			defer wg.Done()
			defer bar.Add(1)
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := os.ReadFile(img.Path)
			if err != nil {
				fail(img, err)
				return
			}
			data, err = capture.Prepare(data, cfg.Capture.MaxWidth)
			if err != nil {
				fail(img, err)
				return
			}
			resp, err := client.ComputeFaceEmbeddings(ctx, data)
			if err != nil {
				fail(img, err)
				return
			}
			face, ok := recognizer.LargestFace(resp.Faces)
			if !ok {
				mu.Lock()
				noFace++
				mu.Unlock()
				return
			}
			if err := g.Add(img.Label, face.Embedding); err != nil {
				fail(img, err)
				return
			}
			mu.Lock()
			successCount++
			mu.Unlock()
		}(img)
	}

	wg.Wait()
	fmt.Println()

	for _, f := range failures {
		fmt.Printf("  Error: %s\n", f)
	}
	if successCount == 0 && !mustGetBool(cmd, "append") {
		return fmt.Errorf("no faces enrolled, gallery left unchanged")
	}
	if err := g.Save(cfg.Paths.Gallery); err != nil {
		return err
	}

	fmt.Printf("\nCompleted: %d enrolled, %d without a face, %d errors\n", successCount, noFace, errCount)
	fmt.Printf("Gallery: %d embeddings for %d labels saved to %s\n", g.Len(), len(g.Labels()), cfg.Paths.Gallery)
	return nil
}
