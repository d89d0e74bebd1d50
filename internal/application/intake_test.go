package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"anemia-screen/internal/domain/entity"
)

func candidate(size int64, mediaType, name string) *entity.CandidateImage {
	return &entity.CandidateImage{Data: make([]byte, 0), MediaType: mediaType, Size: size, Filename: name}
}

func TestFileValidator_Order(t *testing.T) {
	v := NewFileValidator(0)

	tests := []struct {
		name   string
		in     *entity.CandidateImage
		reason string
	}{
		{"missing", nil, "No file provided"},
		{"empty beats type", candidate(0, "text/plain", "a.txt"), "File is empty"},
		{"too large beats type", candidate(DefaultMaxUploadBytes+1, "text/plain", "a.txt"), "File too large (max 10 MB)"},
		{"bad type", candidate(10, "image/gif", "a.jpg"), "Invalid file type"},
		{"bad type beats extension", candidate(10, "application/pdf", "a.pdf"), "Invalid file type"},
		{"spoofed mime", candidate(10, "image/jpeg", "payload.exe"), "Invalid file extension"},
		{"no extension", candidate(10, "image/png", "image"), "Invalid file extension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.in)
			require.False(t, res.Accepted)
			require.Equal(t, tt.reason, res.Reason)
			require.Equal(t, entity.KindIntakeRejection, entity.KindOf(res.Err()))
		})
	}
}

func TestFileValidator_Accepts(t *testing.T) {
	v := NewFileValidator(0)

	for _, c := range []*entity.CandidateImage{
		candidate(50*1024, "image/jpeg", "eye.jpg"),
		candidate(1, "image/jpg", "EYE.JPEG"),
		candidate(DefaultMaxUploadBytes, "image/png", "scan.png"),
		candidate(10, "image/webp", "x.webp"),
		candidate(10, "IMAGE/JPEG; charset=binary", "x.jpg"),
	} {
		res := v.Validate(c)
		require.True(t, res.Accepted, c.Filename)
		require.Empty(t, res.Reason)
		require.NoError(t, res.Err())
	}
}

func TestFileValidator_SizeBoundary(t *testing.T) {
	v := NewFileValidator(0)

	for _, size := range []int64{0, 1, 1024, DefaultMaxUploadBytes - 1, DefaultMaxUploadBytes, DefaultMaxUploadBytes + 1, 1 << 30} {
		for _, mt := range []string{"image/jpeg", "text/html"} {
			res := v.Validate(candidate(size, mt, "a.exe"))
			sizeRejected := res.Reason == "File is empty" || res.Reason == "File too large (max 10 MB)"
			require.Equal(t, size == 0 || size > DefaultMaxUploadBytes, sizeRejected, "size %d", size)
		}
	}
}

func TestFileValidator_CustomLimit(t *testing.T) {
	v := NewFileValidator(5 << 20)
	res := v.Validate(candidate(6<<20, "image/jpeg", "a.jpg"))
	require.Equal(t, "File too large (max 5 MB)", res.Reason)

	v = NewFileValidator(1536 << 10)
	res = v.Validate(candidate(2<<20, "image/jpeg", "a.jpg"))
	require.Equal(t, "File too large (max 1.5 MB)", res.Reason)
}
