package memory

import (
	"testing"

	"github.com/mozpay/webpay-server/pkg/webpay/data/notice/tests"
)

func TestNoticeMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}

	tests.RunTests(t, testStore, teardown)
}
