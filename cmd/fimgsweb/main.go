package main

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	fimgs "github.com/rprtr258/fimgs/pkg"
	"github.com/rprtr258/fimgs/pkg/bufpool"
	"github.com/rprtr258/fimgs/pkg/imageio"
	"github.com/rprtr258/fimgs/pkg/preset"
)

//go:embed templates/*.html
var templatesFS embed.FS

var errBadRequest = errors.New("bad request")

var contentTypeExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

type server struct {
	dir       string
	maxBytes  int64
	registry  *fimgs.Registry
	codec     imageio.Codec
	pool      *bufpool.Pool
	client    *http.Client
	logger    *slog.Logger
	templates *template.Template
	seq       atomic.Int64
}

func newServer(dir string, maxBytes int64, logger *slog.Logger) (*server, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create image directory %q", dir)
	}
	pool := bufpool.New()
	return &server{
		dir:       dir,
		maxBytes:  maxBytes,
		registry:  fimgs.NewRegistry(fimgs.Env{Pool: pool, Engine: fimgs.Engine{Workers: 4}}),
		pool:      pool,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
		templates: template.Must(template.ParseFS(templatesFS, "templates/*.html")),
	}, nil
}

func (s *server) newImageID() string {
	return fmt.Sprintf("%s-%d", time.Now().Format("2006-01-02-15-04-05"), s.seq.Add(1))
}

func (s *server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("rendering template", "name", name, "err", err)
	}
}

// downloadImage stores the image at url in the image directory.
func (s *server) downloadImage(ctx context.Context, url string) (_filename, _imageID string, _ error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", errors.Wrapf(errBadRequest, "url %q: %s", url, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", errors.Wrapf(fimgs.ErrIOFailure, "download %q: %s", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", errors.Wrapf(fimgs.ErrIOFailure, "download %q: status %s", url, resp.Status)
	}
	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	ext, ok := contentTypeExt[contentType]
	if !ok {
		return "", "", errors.Wrapf(errBadRequest, "image format %q is not supported", contentType)
	}

	imageID := s.newImageID()
	filename := filepath.Join(s.dir, imageID+".orig"+ext)
	f, err := os.Create(filename)
	if err != nil {
		return "", "", errors.Wrapf(fimgs.ErrIOFailure, "create %q: %s", filename, err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		os.Remove(filename)
		return "", "", errors.Wrapf(fimgs.ErrIOFailure, "download %q: %s", url, err)
	}
	if n > s.maxBytes {
		os.Remove(filename)
		return "", "", errors.Wrapf(errBadRequest, "image is larger than %d bytes", s.maxBytes)
	}
	return filename, imageID, nil
}

type filterPageData struct {
	FilterName  string
	Description string
	Usage       string
	Message     string
	ImageFile   string
}

// process downloads the source image, runs f over it and returns the result path.
func (s *server) process(ctx context.Context, f fimgs.Filter, url string) (string, error) {
	sourceFilename, imageID, err := s.downloadImage(ctx, url)
	if err != nil {
		return "", err
	}

	im, buf, err := s.codec.Load(sourceFilename, s.pool)
	if err != nil {
		return "", err
	}
	defer s.pool.Release(buf)

	if err := f.Apply(im); err != nil {
		return "", err
	}
	resultFilename := filepath.Join(s.dir, imageID+".res.png")
	if err := s.codec.Save(resultFilename, im); err != nil {
		return "", err
	}
	return resultFilename, nil
}

func (s *server) filterHandler(name string) http.HandlerFunc {
	usage, _ := s.registry.Usage(name)
	return func(w http.ResponseWriter, r *http.Request) {
		page := filterPageData{FilterName: name, Usage: usage}
		if f, err := s.registry.Create(name, nil); err == nil {
			page.Description = f.Describe()
		}
		if r.Method != http.MethodPost {
			s.render(w, http.StatusOK, "filter.html", page)
			return
		}

		if err := r.ParseForm(); err != nil {
			page.Message = fmt.Sprintf("Error in request:\n%q", err)
			s.render(w, http.StatusBadRequest, "filter.html", page)
			return
		}
		imageURL := r.PostFormValue("url")
		if imageURL == "" {
			page.Message = "'url' is not provided"
			s.render(w, http.StatusBadRequest, "filter.html", page)
			return
		}

		chainText := name
		if params := strings.TrimSpace(r.PostFormValue("params")); params != "" {
			chainText += ":" + params
		}
		specs, err := preset.ParseChain(chainText)
		if err != nil || len(specs) != 1 {
			page.Message = fmt.Sprintf("Error in request params:\n%q", chainText)
			s.render(w, http.StatusBadRequest, "filter.html", page)
			return
		}
		f, err := s.registry.Create(name, specs[0].Params)
		if err != nil {
			page.Message = err.Error()
			s.render(w, http.StatusNotFound, "filter.html", page)
			return
		}

		start := time.Now()
		resultFilename, err := s.process(r.Context(), f, imageURL)
		if err != nil {
			s.logger.Warn("processing failed", "filter", name, "url", imageURL, "err", err)
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, errBadRequest):
				status = http.StatusBadRequest
			case errors.Is(err, fimgs.ErrIOFailure):
				status = http.StatusBadGateway
			}
			page.Message = fmt.Sprintf("Error occurred:\n%q", err)
			s.render(w, status, "filter.html", page)
			return
		}

		took := time.Since(start)
		s.logger.Info("processed", "filter", specs[0].String(), "url", imageURL, "result", resultFilename, "took", took)
		page.Message = fmt.Sprintf("Processed image %q in %s", imageURL, took.Round(time.Millisecond))
		page.ImageFile = "img/" + filepath.Base(resultFilename)
		s.render(w, http.StatusOK, "filter.html", page)
	}
}

type filterInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage,omitempty"`
}

func (s *server) listFilters(w http.ResponseWriter, _ *http.Request) {
	infos := []filterInfo{}
	for _, name := range s.registry.Names() {
		f, _ := s.registry.Create(name, nil)
		usage, _ := s.registry.Usage(name)
		infos = append(infos, filterInfo{Name: name, Description: f.Describe(), Usage: usage})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		s.logger.Error("writing filter list", "err", err)
	}
}

type lastImage struct {
	ID, Source, Result string
}

// lasts shows stored images grouped by id, newest first.
func (s *server) lasts(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("reading images", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	byID := map[string]*lastImage{}
	for _, e := range entries {
		filename := e.Name()
		base := strings.TrimSuffix(filename, filepath.Ext(filename))
		dot := strings.LastIndex(base, ".")
		if dot == -1 {
			continue
		}
		imageID, kind := base[:dot], base[dot+1:]
		li, ok := byID[imageID]
		if !ok {
			li = &lastImage{ID: imageID}
			byID[imageID] = li
		}
		switch kind {
		case "orig":
			li.Source = "img/" + filename
		case "res":
			li.Result = "img/" + filename
		}
	}

	images := make([]lastImage, 0, len(byID))
	for _, li := range byID {
		images = append(images, *li)
	}
	sort.Slice(images, func(i, j int) bool { return images[i].ID > images[j].ID })
	s.render(w, http.StatusOK, "lasts.html", images)
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/img/", http.StripPrefix("/img/", http.FileServer(http.Dir(s.dir))))
	mux.HandleFunc("/filters", s.listFilters)
	mux.HandleFunc("/lasts", s.lasts)
	for _, name := range s.registry.Names() {
		mux.HandleFunc("/"+name, s.filterHandler(name))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			s.render(w, http.StatusNotFound, "404.html", nil)
			return
		}
		s.render(w, http.StatusOK, "index.html", s.registry.Names())
	})
	return mux
}

func main() {
	if err := (&cli.App{
		Name:  "fimgsweb",
		Usage: "web front-end for image filters",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", EnvVars: []string{"FIMGS_ADDR"}},
			&cli.StringFlag{Name: "img-dir", Value: "img", EnvVars: []string{"FIMGS_IMG_DIR"}},
			&cli.Int64Flag{Name: "max-bytes", Usage: "largest accepted source image", Value: 20 << 20, EnvVars: []string{"FIMGS_MAX_BYTES"}},
		},
		Action: func(c *cli.Context) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			s, err := newServer(c.String("img-dir"), c.Int64("max-bytes"), logger)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:           c.String("addr"),
				Handler:        s.routes(),
				ReadTimeout:    10 * time.Second,
				WriteTimeout:   60 * time.Second,
				MaxHeaderBytes: 1 << 20,
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("shutdown", "err", err)
				}
			}()

			logger.Info("listening", "addr", srv.Addr, "filters", len(s.registry.Names()))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}).Run(os.Args); err != nil {
		slog.Error("fimgsweb failed", "err", err)
		os.Exit(1)
	}
}
