package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/davit-gh/speech2text-bot/internal/domain"
)

// DriveArchiver uploads finished transcripts to a Google Drive folder
// tree. Archival is best-effort: callers log failures and move on.
type DriveArchiver struct {
	service    *drive.Service
	folderName string
	folderID   string
	log        *logrus.Entry
}

// NewDriveArchiver builds an archiver from an OAuth credentials file and
// a pre-provisioned token file. The token must already exist; this is a
// daemon, there is no interactive consent flow.
func NewDriveArchiver(credentialsFile, tokenFile, folderName string, log *logrus.Entry) (*DriveArchiver, error) {
	ctx := context.Background()

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file (provision it once via the OAuth consent flow): %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(oauthClient(config, tok)))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	da := &DriveArchiver{
		service:    srv,
		folderName: folderName,
		log:        log,
	}
	if err := da.ensureRootFolder(); err != nil {
		return nil, err
	}
	return da, nil
}

func oauthClient(config *oauth2.Config, tok *oauth2.Token) *http.Client {
	return config.Client(context.Background(), tok)
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	return tok, json.NewDecoder(f).Decode(tok)
}

// Archive uploads the transcript text and a metadata JSON into a dated
// folder, retrying transient failures with exponential backoff. Returns
// a shareable link to the uploaded transcript.
func (da *DriveArchiver) Archive(ctx context.Context, rec SessionRecord, t domain.Transcript) (string, error) {
	var url string
	op := func() error {
		var err error
		url, err = da.upload(ctx, rec, t)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return url, nil
}

func (da *DriveArchiver) upload(ctx context.Context, rec SessionRecord, t domain.Transcript) (string, error) {
	now := time.Now()
	folderID, err := da.ensureDateFolder(now)
	if err != nil {
		return "", err
	}

	baseName := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), rec.SessionID[:8])

	txtFile := &drive.File{
		Name:    baseName + ".txt",
		Parents: []string{folderID},
	}
	created, err := da.service.Files.Create(txtFile).
		Media(strings.NewReader(t.Text())).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("upload transcript: %w", err)
	}

	meta := map[string]interface{}{
		"session_id":  rec.SessionID,
		"title":       rec.Title,
		"source_type": rec.SourceType,
		"word_count":  rec.WordCount,
		"elapsed_ms":  rec.ElapsedMS,
		"created_at":  now,
	}
	metaJSON, _ := json.MarshalIndent(meta, "", "  ")

	metaFile := &drive.File{
		Name:    baseName + "_meta.json",
		Parents: []string{folderID},
	}
	if _, err := da.service.Files.Create(metaFile).
		Media(strings.NewReader(string(metaJSON))).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("upload metadata: %w", err)
	}

	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", created.Id), nil
}

// ensureRootFolder finds or creates the archiver's top-level folder.
func (da *DriveArchiver) ensureRootFolder() error {
	id, err := da.findOrCreateFolder(da.folderName, "")
	if err != nil {
		return fmt.Errorf("ensure root folder: %w", err)
	}
	da.folderID = id
	return nil
}

// ensureDateFolder creates nested year/month/day folders.
func (da *DriveArchiver) ensureDateFolder(t time.Time) (string, error) {
	yearID, err := da.findOrCreateFolder(fmt.Sprintf("%d", t.Year()), da.folderID)
	if err != nil {
		return "", err
	}
	monthID, err := da.findOrCreateFolder(fmt.Sprintf("%02d", t.Month()), yearID)
	if err != nil {
		return "", err
	}
	return da.findOrCreateFolder(fmt.Sprintf("%02d", t.Day()), monthID)
}

func (da *DriveArchiver) findOrCreateFolder(name, parentID string) (string, error) {
	query := fmt.Sprintf(
		"name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false", name)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	r, err := da.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Do()
	if err != nil {
		return "", err
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.folder",
	}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}

	file, err := da.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return "", err
	}
	return file.Id, nil
}
