package database

import (
	"context"
	"time"

	"github.com/bwithai/traffic-analysis/internal/models"
)

// InsertVideo записывает загруженный файл в каталог; повторная загрузка обновляет запись
func (d *Database) InsertVideo(ctx context.Context, video *models.VideoFile) error {
	video.UploadedAt = time.Now()

	_, err := d.querier(ctx).ExecContext(ctx,
		`INSERT INTO videos (name, size, content_type, uploaded_at) VALUES ($1, $2, $3, $4)
				ON CONFLICT (name) DO UPDATE SET size = $2, content_type = $3, uploaded_at = $4`,
		video.Name,
		video.Size,
		video.ContentType,
		video.UploadedAt,
	)

	return err
}

// GetVideo retrieves a catalog entry by file name
func (d *Database) GetVideo(ctx context.Context, name string) (models.VideoFile, error) {
	var v models.VideoFile
	err := d.querier(ctx).QueryRowContext(ctx,
		"SELECT name, size, content_type, uploaded_at FROM videos WHERE name = $1",
		name,
	).Scan(
		&v.Name,
		&v.Size,
		&v.ContentType,
		&v.UploadedAt,
	)

	if err != nil {
		return models.VideoFile{}, err
	}

	return v, nil
}

// ListVideos retrieves all uploaded files ordered by upload time
func (d *Database) ListVideos(ctx context.Context) ([]models.VideoFile, error) {
	rows, err := d.querier(ctx).QueryContext(ctx,
		"SELECT name, size, content_type, uploaded_at FROM videos ORDER BY uploaded_at",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []models.VideoFile
	for rows.Next() {
		var v models.VideoFile
		err := rows.Scan(
			&v.Name,
			&v.Size,
			&v.ContentType,
			&v.UploadedAt,
		)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}

	return videos, rows.Err()
}
