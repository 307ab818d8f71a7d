// Package render generates receipt and e-pass card images for WhatsApp
// delivery. Cards are written as PNG files into a media directory that the
// HTTP server exposes under /receipts/, and the returned public URL is what
// the messaging layer sends as an image.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/util"
)

// Constants for card rendering
const (
	cardWidth  = 380
	qrSize     = 120
	lineHeight = 22

	// DefaultMediaDir is where generated card images are written when no
	// directory is configured.
	DefaultMediaDir = "/var/lib/parkeasy/receipts"
)

// Card border colors matching the transaction outcome.
var (
	colorPaid    = color.RGBA{R: 0x25, G: 0xD3, B: 0x66, A: 0xFF}
	colorPass    = color.RGBA{R: 0x12, G: 0x8C, B: 0x7E, A: 0xFF}
	colorUnpaid  = color.RGBA{R: 0xDD, G: 0x2C, B: 0x00, A: 0xFF}
	colorHeading = color.RGBA{R: 0x12, G: 0x8C, B: 0x7E, A: 0xFF}
	colorText    = color.RGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xFF}
	colorLabel   = color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xFF}
)

// Renderer produces shareable card images and returns their public URLs.
// An empty URL with a nil error means rendering is disabled.
type Renderer interface {
	ReceiptImage(ctx context.Context, lot models.ParkingLot, txn models.Transaction) (string, error)
	PassImage(ctx context.Context, lot models.ParkingLot, pass models.Pass, passName string) (string, error)
}

// Opts holds configuration options for the file renderer.
type Opts struct {
	MediaDir string // directory where PNG files are written
	BaseURL  string // public base URL the HTTP server is reachable at
}

// Option defines a configuration option for the file renderer.
type Option func(*Opts)

// WithMediaDir sets the directory card images are written to.
func WithMediaDir(dir string) Option {
	return func(o *Opts) { o.MediaDir = dir }
}

// WithBaseURL sets the public base URL, e.g. "https://parkeasy.example.com".
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = strings.TrimRight(url, "/") }
}

// FileRenderer writes card PNGs into a media directory.
type FileRenderer struct {
	mediaDir string
	baseURL  string
	loc      *time.Location
}

// NewFileRenderer creates a renderer, falling back to the PUBLIC_URL
// environment variable when no base URL option is given. It fails when no
// public URL is available since generated files would be unreachable.
func NewFileRenderer(opts ...Option) (*FileRenderer, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = strings.TrimRight(os.Getenv("PUBLIC_URL"), "/")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("public base URL must be provided")
	}
	if cfg.MediaDir == "" {
		cfg.MediaDir = DefaultMediaDir
	}
	if err := os.MkdirAll(cfg.MediaDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory %s: %w", cfg.MediaDir, err)
	}

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		slog.Warn("Failed to load Asia/Kolkata timezone, card times will be UTC", "error", err)
		loc = time.UTC
	}

	return &FileRenderer{mediaDir: cfg.MediaDir, baseURL: cfg.BaseURL, loc: loc}, nil
}

// MediaDir returns the directory card images are written to, for the HTTP
// server to mount as a static file route.
func (r *FileRenderer) MediaDir() string { return r.mediaDir }

// ReceiptImage renders a parking receipt card for the transaction and
// returns its public URL.
func (r *FileRenderer) ReceiptImage(ctx context.Context, lot models.ParkingLot, txn models.Transaction) (string, error) {
	border := colorPaid
	title := "Parking E-Receipt"
	// basicfont has no rupee glyph, so amounts use "Rs".
	amount := fmt.Sprintf("Rs %d", txn.TotalFee)
	payMode := "N/A"

	status := string(txn.Status)
	switch {
	case strings.Contains(status, "CASH"):
		payMode = "Cash"
	case strings.Contains(status, "UPI"):
		payMode = "UPI"
	}
	if strings.Contains(status, "PASS") {
		border = colorPass
		title = "Pass Holder Entry/Exit"
		amount = "Pass"
		payMode = "Monthly Pass"
	}
	if strings.Contains(status, "UNPAID") {
		border = colorUnpaid
		title = "Payment Pending"
		amount = fmt.Sprintf("Rs %d (Due)", txn.TotalFee)
		payMode = "Pay Later"
	}
	if txn.VehicleState == models.VehicleExited && strings.Contains(status, "NO_FEE") {
		amount = fmt.Sprintf("Rs %d (No Overstay)", txn.TotalFee)
	}

	exitTime := "INSIDE"
	if txn.EndTime != nil {
		exitTime = r.formatTime(*txn.EndTime)
	}

	ref := util.GenerateReceiptRef()
	rows := []detailRow{
		{"Receipt Ref:", ref},
		{"Vehicle No:", txn.VehicleNumber},
		{"Entry Time:", r.formatTime(txn.StartTime)},
		{"Exit Time:", exitTime},
		{"Total Paid:", amount},
		{"Pay Mode:", payMode},
	}

	qrPayload, _ := json.Marshal(map[string]string{"action": "PARKEASY_INFO", "vehicle": txn.VehicleNumber})
	// Card URLs are public, so the name carries the random reference.
	name := fmt.Sprintf("receipt_%s_%s.png", txn.VehicleNumber, ref)
	if err := r.writeCard(name, lot.Name, title, border, rows, qrPayload); err != nil {
		slog.Error("Renderer ReceiptImage failed", "error", err, "vehicle", txn.VehicleNumber)
		return "", err
	}
	slog.Info("Renderer ReceiptImage succeeded", "vehicle", txn.VehicleNumber, "file", name)
	return r.publicURL(name), nil
}

// PassImage renders an e-pass card for the pass and returns its public URL.
func (r *FileRenderer) PassImage(ctx context.Context, lot models.ParkingLot, pass models.Pass, passName string) (string, error) {
	title := "E-Pass"
	if passName != "" {
		title = passName + " E-Pass"
	}
	ref := util.GeneratePassRef()
	rows := []detailRow{
		{"Pass Ref:", ref},
		{"Vehicle No:", pass.VehicleNumber},
		{"Valid Until:", pass.ExpiryDate.In(r.loc).Format("2 January 2006")},
		{"Status:", string(pass.Status)},
	}

	qrPayload, _ := json.Marshal(map[string]string{"action": "PARKEASY_PASS_VERIFY", "vehicle": pass.VehicleNumber})
	name := fmt.Sprintf("epass_%s_%s.png", pass.VehicleNumber, ref)
	if err := r.writeCard(name, lot.Name, title, colorPass, rows, qrPayload); err != nil {
		slog.Error("Renderer PassImage failed", "error", err, "vehicle", pass.VehicleNumber)
		return "", err
	}
	slog.Info("Renderer PassImage succeeded", "vehicle", pass.VehicleNumber, "file", name)
	return r.publicURL(name), nil
}

// Cleanup removes card images older than the given age. The daily job calls
// this so the media directory does not grow without bound.
func (r *FileRenderer) Cleanup(olderThan time.Duration) error {
	entries, err := os.ReadDir(r.mediaDir)
	if err != nil {
		return fmt.Errorf("failed to read media directory: %w", err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(r.mediaDir, entry.Name())); err != nil {
				slog.Warn("Renderer Cleanup failed to remove file", "file", entry.Name(), "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Renderer Cleanup removed stale card images", "count", removed)
	}
	return nil
}

func (r *FileRenderer) publicURL(name string) string {
	return r.baseURL + "/receipts/" + name
}

func (r *FileRenderer) formatTime(t time.Time) string {
	return t.In(r.loc).Format("2 Jan 2006, 3:04 PM")
}

type detailRow struct {
	label string
	value string
}

// writeCard draws the card PNG and writes it into the media directory.
func (r *FileRenderer) writeCard(name, lotName, title string, border color.RGBA, rows []detailRow, qrPayload []byte) error {
	height := 130 + len(rows)*lineHeight + 30 + qrSize + 30
	img := image.NewRGBA(image.Rect(0, 0, cardWidth, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(border), image.Point{}, draw.Src)
	inner := image.Rect(4, 4, cardWidth-4, height-4)
	draw.Draw(img, inner, image.NewUniform(color.White), image.Point{}, draw.Src)

	drawTextCentered(img, 40, colorHeading, "ParkEasy")
	if lotName == "" {
		lotName = "ParkEasy Lot"
	}
	drawTextCentered(img, 62, colorLabel, lotName)
	drawDivider(img, 78)
	drawTextCentered(img, 106, colorText, title)

	y := 136
	for _, row := range rows {
		drawText(img, 30, y, colorLabel, row.label)
		drawText(img, 140, y, colorText, row.value)
		y += lineHeight
	}

	qrPNG, err := qrcode.Encode(string(qrPayload), qrcode.Medium, qrSize)
	if err != nil {
		return fmt.Errorf("failed to encode QR code: %w", err)
	}
	qrImg, err := png.Decode(bytes.NewReader(qrPNG))
	if err != nil {
		return fmt.Errorf("failed to decode QR code image: %w", err)
	}
	qrRect := image.Rect((cardWidth-qrSize)/2, y+20, (cardWidth+qrSize)/2, y+20+qrSize)
	draw.Draw(img, qrRect, qrImg, qrImg.Bounds().Min, draw.Over)

	path := filepath.Join(r.mediaDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create card file %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode card PNG: %w", err)
	}
	return nil
}

func drawText(img *image.RGBA, x, y int, col color.RGBA, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func drawTextCentered(img *image.RGBA, y int, col color.RGBA, s string) {
	width := font.MeasureString(basicfont.Face7x13, s).Ceil()
	drawText(img, (cardWidth-width)/2, y, col, s)
}

func drawDivider(img *image.RGBA, y int) {
	for x := 25; x < cardWidth-25; x += 8 {
		for dx := 0; dx < 4; dx++ {
			img.Set(x+dx, y, color.RGBA{R: 0xCC, G: 0xCC, B: 0xCC, A: 0xFF})
		}
	}
}

// NoopRenderer disables card images. Flows treat an empty URL as "skip the
// image" and fall back to plain text receipts.
type NoopRenderer struct{}

func (NoopRenderer) ReceiptImage(ctx context.Context, lot models.ParkingLot, txn models.Transaction) (string, error) {
	return "", nil
}

func (NoopRenderer) PassImage(ctx context.Context, lot models.ParkingLot, pass models.Pass, passName string) (string, error) {
	return "", nil
}
