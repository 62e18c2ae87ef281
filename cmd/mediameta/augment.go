package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"media-meta/internal/augmenter"
)

var (
	augServer     string
	augToken      string
	augAttachment int64
	augKeywords   string
	augGenerate   bool
	augRoot       string
	augFilename   string
)

// augmentCmd represents the augment command
var augmentCmd = &cobra.Command{
	Use:   "augment <html-file>",
	Short: "Inject the generator panel into a saved media-details page.",
	Long: `Reads a media-details HTML page (use - for stdin), injects the generator panel
into the view selected by --root and prints the result. With --generate, also
clicks the generate button against a running server and fills in the fields.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		doc, err := readDocument(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", args[0], err)
			return
		}
		root := doc.Find(augRoot).First()
		if root.Length() == 0 {
			fmt.Fprintf(os.Stderr, "No element matches %q.\n", augRoot)
			return
		}

		var (
			remote *augmenter.RemoteClient
			model  augmenter.Model
		)
		if augServer != "" {
			remote = augmenter.NewRemoteClient(augServer, augToken, nil)
			m, err := remote.LoadModel(ctx, augAttachment)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading attachment %d: %v\n", augAttachment, err)
				return
			}
			model = m
		} else {
			model = augmenter.NewFieldModel(map[string]string{
				augmenter.KeyID:       strconv.FormatInt(augAttachment, 10),
				augmenter.KeyFilename: augFilename,
			}, nil)
		}

		opts := augmenter.Options{
			Notifier: augmenter.NotifierFunc(func(msg string) { fmt.Fprintln(os.Stderr, msg) }),
		}
		if augGenerate {
			if remote == nil {
				fmt.Fprintln(os.Stderr, "--generate needs --server.")
				return
			}
			nonce, err := remote.Nonce(ctx, augmenter.MediaNonceAction)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting nonce: %v\n", err)
				return
			}
			opts.Generator = remote.Generator(nonce)
		}
		aug := augmenter.New(opts)

		// The page is already rendered, so the host class only has to exist
		// for the augmenter to wrap it.
		views := augmenter.NewRegistry(augmenter.NewClass("Details", nil))
		aug.Extend(views)

		view := &augmenter.View{Root: root, Document: doc, Model: model}
		if err := views.Render("Details", view); err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering view: %v\n", err)
			return
		}
		aug.Wait()

		if augGenerate {
			augmenter.Panel(view).Find(".media-meta-generator-keywords").SetAttr("value", augKeywords)
			// Failures are reported through the notifier.
			_ = aug.Generate(ctx, view)
			aug.Wait()
		}

		html, err := doc.Html()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing HTML: %v\n", err)
			return
		}
		fmt.Println(html)
	},
}

func readDocument(name string) (*goquery.Document, error) {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return goquery.NewDocumentFromReader(r)
}

func init() {
	rootCmd.AddCommand(augmentCmd)
	augmentCmd.Flags().StringVar(&augServer, "server", "", "Base URL of a running mediameta server (e.g. http://localhost:8080)")
	augmentCmd.Flags().StringVar(&augToken, "token", "", "Bearer token for the server")
	augmentCmd.Flags().Int64Var(&augAttachment, "attachment", 0, "Attachment ID shown by the page")
	augmentCmd.Flags().StringVar(&augKeywords, "keywords", "", "Keywords to type into the panel before generating")
	augmentCmd.Flags().BoolVar(&augGenerate, "generate", false, "Click the generate button")
	augmentCmd.Flags().StringVar(&augRoot, "root", ".attachment-details", "Selector of the view's root element")
	augmentCmd.Flags().StringVar(&augFilename, "filename", "", "File name when no server is given")
}
