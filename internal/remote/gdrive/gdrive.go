// Package gdrive implements remote.Storage on Google Drive v3 and Sheets v4
// with a service account.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"neurotutor/internal/remote"
)

const pageSize = 100

// Client talks to Drive and Sheets.
type Client struct {
	drive  *drive.Service
	sheets *sheets.Service
}

// New builds API clients from a service account credentials file.
func New(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*Client, error) {
	base := append([]option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveScope, sheets.SpreadsheetsScope),
	}, opts...)

	d, err := drive.NewService(ctx, base...)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	s, err := sheets.NewService(ctx, base...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &Client{drive: d, sheets: s}, nil
}

var _ remote.Storage = (*Client)(nil)

func (c *Client) ListFiles(ctx context.Context, folderID string) ([]remote.File, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))
	var out []remote.File
	token := ""
	for {
		call := c.drive.Files.List().
			Q(q).
			PageSize(pageSize).
			Fields("nextPageToken, files(id, name, mimeType)").
			Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}
		res, err := call.Do()
		if err != nil {
			return nil, wrap("list "+folderID, err)
		}
		for _, f := range res.Files {
			out = append(out, remote.File{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
		}
		if res.NextPageToken == "" {
			return out, nil
		}
		token = res.NextPageToken
	}
}

func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.drive.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, wrap("download "+fileID, err)
	}
	return readBody(resp)
}

func (c *Client) ExportText(ctx context.Context, fileID string) (string, error) {
	resp, err := c.drive.Files.Export(fileID, "text/plain").Context(ctx).Download()
	if err != nil {
		return "", wrap("export "+fileID, err)
	}
	b, err := readBody(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Client) ReadRows(ctx context.Context, sheetID, rng string) ([][]string, error) {
	res, err := c.sheets.Spreadsheets.Values.Get(sheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, wrap("read "+sheetID, err)
	}
	rows := make([][]string, 0, len(res.Values))
	for _, r := range res.Values {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) WriteCell(ctx context.Context, sheetID, cell, value string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := c.sheets.Spreadsheets.Values.Update(sheetID, cell, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return wrap("write "+sheetID+"!"+cell, err)
	}
	return nil
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

func wrap(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, remote.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// escapeQuery quotes a value for use inside a Drive query string literal.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
