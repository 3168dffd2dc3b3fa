package volume_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/jtarchie/discovery/testhelpers"
	"github.com/jtarchie/discovery/volume"
	. "github.com/onsi/gomega"
)

func TestUploader(t *testing.T) {
	t.Parallel()

	t.Run("uploads every regular file and reports detected content types", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		minio := testhelpers.StartMinIO(t)
		t.Cleanup(minio.Stop)

		dsn := fmt.Sprintf("s3://%s?endpoint=%s&region=us-east-1", minio.Bucket(), minio.Endpoint())

		uploader, err := volume.NewUploader(context.Background(), dsn, slog.Default())
		assert.Expect(err).NotTo(HaveOccurred())

		v, err := volume.New(t.TempDir(), "run-upload", slog.Default())
		assert.Expect(err).NotTo(HaveOccurred())

		assert.Expect(v.Write("report.json", `{"hits":3}`)).NotTo(HaveOccurred())

		descriptors := uploader.UploadAll(context.Background(), v)
		assert.Expect(descriptors).To(HaveLen(1))
		assert.Expect(descriptors[0].Path).To(Equal("report.json"))
		assert.Expect(descriptors[0].ContentType).NotTo(BeEmpty())
	})

	t.Run("NewUploader rejects a non-s3 scheme", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		_, err := volume.NewUploader(context.Background(), "http://example.com/bucket", slog.Default())
		assert.Expect(err).To(HaveOccurred())
	})
}
