package gcsdata

import "testing"

func TestSplitGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{uri: "gs://eco-data/seeds/transactions.csv", wantBucket: "eco-data", wantObject: "seeds/transactions.csv"},
		{uri: "gs://bucket/file.csv", wantBucket: "bucket", wantObject: "file.csv"},
		{uri: "gs://bucket-only", wantErr: true},
		{uri: "gs://bucket/", wantErr: true},
		{uri: "/local/path.csv", wantErr: true},
		{uri: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := SplitGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("SplitGCSURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestIsGCSURI(t *testing.T) {
	if !IsGCSURI("gs://b/o") {
		t.Error("gs://b/o should be a GCS URI")
	}
	if IsGCSURI("data/transactions.csv") {
		t.Error("local path should not be a GCS URI")
	}
}

func TestFilename(t *testing.T) {
	tests := []struct{ uri, want string }{
		{uri: "gs://bucket/folder/data.csv", want: "data.csv"},
		{uri: "gs://bucket/data.csv", want: "data.csv"},
		{uri: "gs://bucket", want: "bucket"},
	}
	for _, tt := range tests {
		if got := Filename(tt.uri); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
