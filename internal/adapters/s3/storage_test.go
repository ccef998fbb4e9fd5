package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

type fakeS3 struct {
	putErr  error
	put     *awss3.PutObjectInput
	body    string
	expires time.Duration
}

func (f *fakeS3) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.put = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts awss3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://" + *in.Bucket + ".s3.example/" + *in.Key + "?X-Amz-Signature=x"}, nil
}

func TestUploadAndPresign(t *testing.T) {
	fake := &fakeS3{}
	st := newStorage("evidence", fake, fake)
	st.newKey = func(in ports.UploadInput) string { return "cases/" + in.CaseID + "/fixed.pdf" }

	key, err := st.Upload(context.Background(), ports.UploadInput{
		CaseID: "case-1", EvidenceTypeID: "t-1", FileName: "agreement.pdf",
		ContentType: "application/pdf", Size: 4, Body: strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	assert.Equal(t, "cases/case-1/fixed.pdf", key)
	assert.Equal(t, "evidence", *fake.put.Bucket)
	assert.Equal(t, "application/pdf", *fake.put.ContentType)
	assert.Equal(t, int64(4), *fake.put.ContentLength)
	assert.Equal(t, "%PDF", fake.body)

	u, err := st.PresignGet(context.Background(), key, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://evidence.s3.example/cases/case-1/fixed.pdf?X-Amz-Signature=x", u)
	assert.Equal(t, 10*time.Minute, fake.expires)
}

func TestUploadErrors(t *testing.T) {
	st := newStorage("evidence", &fakeS3{putErr: errors.New("access denied")}, &fakeS3{})
	_, err := st.Upload(context.Background(), ports.UploadInput{CaseID: "c", Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	_, err = st.Upload(context.Background(), ports.UploadInput{CaseID: "c"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestObjectKey(t *testing.T) {
	key := objectKey(ports.UploadInput{CaseID: "case-1", EvidenceTypeID: "t-1", FileName: "scan.PNG"})
	assert.True(t, strings.HasPrefix(key, "cases/case-1/t-1/"))
	assert.True(t, strings.HasSuffix(key, ".PNG"))
}
