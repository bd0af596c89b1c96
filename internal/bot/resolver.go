package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// FileResolver maps Telegram file ids to direct download URLs.
type FileResolver struct {
	api *tgbotapi.BotAPI
}

// NewFileResolver wraps the bot API for the acquirer.
func NewFileResolver(api *tgbotapi.BotAPI) *FileResolver {
	return &FileResolver{api: api}
}

// ResolveFileURL asks Telegram for the file's transfer location.
func (r *FileResolver) ResolveFileURL(fileID string) (string, error) {
	f, err := r.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", err
	}
	return f.Link(r.api.Token), nil
}
