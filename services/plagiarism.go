package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ethesis-api/config"
	"ethesis-api/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrScanFinished = errors.New("plagiarism scan already finished")
	ErrScanNotFound = errors.New("plagiarism scan not found")
)

const (
	msgScanTokenMissing   = "Plagiarism API token is not configured."
	msgScanBaseURLMissing = "Plagiarism API base URL is not configured."
	msgScanNoDocument     = "Plagiarism scan has no document path."
)

var scanTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

type plagiarismResult struct {
	Score                *float64 `json:"score"`
	SourceCounts         *float64 `json:"sourceCounts"`
	TextWordCounts       *float64 `json:"textWordCounts"`
	TotalPlagiarismWords *float64 `json:"totalPlagiarismWords"`
	IdenticalWordCounts  *float64 `json:"identicalWordCounts"`
	SimilarWordCounts    *float64 `json:"similarWordCounts"`
}

type plagiarismResponse struct {
	Result          *plagiarismResult `json:"result"`
	Sources         []json.RawMessage `json:"sources"`
	ScanInformation json.RawMessage   `json:"scanInformation"`
}

// PlagiarismService records scans and performs the single external call for each.
type PlagiarismService struct {
	db      *gorm.DB
	cfg     config.PlagiarismConfig
	client  *http.Client
	storage Storage
	now     func() time.Time
}

func NewPlagiarismService(db *gorm.DB, cfg config.PlagiarismConfig, storage Storage, client *http.Client) *PlagiarismService {
	if db == nil {
		db = config.DB
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &PlagiarismService{
		db:      db,
		cfg:     cfg,
		client:  client,
		storage: storage,
		now:     time.Now,
	}
}

// Create stores a pending scan for the chapter's current document.
func (s *PlagiarismService) Create(ctx context.Context, thesis *models.Thesis, language, country string) (*models.PlagiarismScan, error) {
	if thesis == nil {
		return nil, ErrNotFound
	}
	scan := &models.PlagiarismScan{
		ThesisID:     thesis.ID,
		Status:       models.ScanStatusPending,
		DocumentPath: thesis.DocumentPath,
		Language:     strings.ToLower(strings.TrimSpace(language)),
		Country:      strings.ToLower(strings.TrimSpace(country)),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(scan).Error; err != nil {
		return nil, err
	}
	return scan, nil
}

func (s *PlagiarismService) List(ctx context.Context, thesisID uint) ([]models.PlagiarismScan, error) {
	var scans []models.PlagiarismScan
	err := s.db.WithContext(ctx).
		Where("thesis_id = ?", thesisID).
		Order("created_at DESC, id DESC").
		Find(&scans).Error
	return scans, err
}

// PendingIDs lists scans that were stored but never processed, oldest first.
func (s *PlagiarismService) PendingIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.PlagiarismScan{}).
		Where("status = ?", models.ScanStatusPending).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// Scan calls the provider once for a pending scan and records completed or failed.
// Provider problems end up on the record; the returned error is reserved for store failures.
func (s *PlagiarismService) Scan(ctx context.Context, scanID uint) error {
	var scan models.PlagiarismScan
	if err := s.db.WithContext(ctx).First(&scan, scanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScanNotFound
		}
		return err
	}
	if scan.Status != models.ScanStatusPending {
		return ErrScanFinished
	}

	if s.cfg.Token == "" {
		return s.fail(ctx, &scan, msgScanTokenMissing)
	}
	if s.cfg.BaseURL == "" {
		return s.fail(ctx, &scan, msgScanBaseURLMissing)
	}
	if strings.TrimSpace(scan.DocumentPath) == "" {
		return s.fail(ctx, &scan, msgScanNoDocument)
	}
	if s.storage == nil {
		return s.fail(ctx, &scan, "Unable to resolve document URL: storage is not configured.")
	}
	fileURL, err := s.storage.URL(scan.DocumentPath)
	if err != nil {
		return s.fail(ctx, &scan, fmt.Sprintf("Unable to resolve document URL: %v", err))
	}

	body, raw, err := s.request(ctx, fileURL, &scan)
	if err != nil {
		return s.fail(ctx, &scan, err.Error())
	}

	r := body.Result
	scan.Status = models.ScanStatusCompleted
	scan.ErrorMessage = nil
	scan.Score = r.Score
	scan.SourceCounts = roundCount(r.SourceCounts)
	scan.TextWordCounts = roundCount(r.TextWordCounts)
	scan.TotalPlagiarismWords = roundCount(r.TotalPlagiarismWords)
	scan.IdenticalWordCounts = roundCount(r.IdenticalWordCounts)
	scan.SimilarWordCounts = roundCount(r.SimilarWordCounts)
	scan.RawResponse = datatypes.JSON(raw)
	scannedAt := s.scanTime(body.ScanInformation)
	scan.ScannedAt = &scannedAt
	return s.save(ctx, &scan)
}

func (s *PlagiarismService) request(ctx context.Context, fileURL string, scan *models.PlagiarismScan) (*plagiarismResponse, []byte, error) {
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("Plagiarism API base URL is invalid: %v", err)
	}
	payload, err := json.Marshal(map[string]string{
		"file":     fileURL,
		"language": scan.LanguageOrDefault(),
		"country":  scan.CountryOrDefault(),
	})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.JoinPath("scan").String(), bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("Plagiarism API request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("Plagiarism API response could not be read: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("Plagiarism API responded with status %d: %s", resp.StatusCode, extractMessage(raw))
	}

	var decoded plagiarismResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, nil, fmt.Errorf("Plagiarism API returned invalid JSON: %v", err)
	}
	if decoded.Result == nil {
		return nil, nil, errors.New("Plagiarism API response did not include a result.")
	}
	return &decoded, raw, nil
}

func (s *PlagiarismService) fail(ctx context.Context, scan *models.PlagiarismScan, message string) error {
	scan.Status = models.ScanStatusFailed
	scan.ErrorMessage = &message
	return s.save(ctx, scan)
}

func (s *PlagiarismService) save(ctx context.Context, scan *models.PlagiarismScan) error {
	if err := s.db.WithContext(persistentContext(ctx)).Omit(clause.Associations).Save(scan).Error; err != nil {
		return fmt.Errorf("save plagiarism scan %d: %w", scan.ID, err)
	}
	return nil
}

// scanTime is the provider-reported time when it parses, otherwise now.
func (s *PlagiarismService) scanTime(info json.RawMessage) time.Time {
	var decoded struct {
		ScanTime string `json:"scanTime"`
	}
	if len(info) > 0 && json.Unmarshal(info, &decoded) == nil {
		value := strings.TrimSpace(decoded.ScanTime)
		for _, layout := range scanTimeLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t
			}
		}
	}
	return s.now()
}

func roundCount(value *float64) *int {
	if value == nil {
		return nil
	}
	n := int(math.Round(*value))
	return &n
}
