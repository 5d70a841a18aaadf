package domain

import "io"

// UploadReq usecase upload request, File is the single file payload of the request
type UploadReq struct {
	FileName    string
	ContentType string
	Size        int64
	File        io.Reader
	Owner       string
}

// UploadRes usecase upload response
type UploadRes struct {
	JobID        string
	SourceHandle string
}

// DownloadRes usecase download response, the caller closes Body
type DownloadRes struct {
	Handle      string
	FileName    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}
