package sqlbackend_test

import (
	"testing"

	"github.com/eideticadb/eidetica/internal/backendtest"
	"github.com/eideticadb/eidetica/pkg/backend"
	"github.com/eideticadb/eidetica/pkg/backend/sqlbackend"
	"github.com/stretchr/testify/require"
)

func TestSQLBackendConformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		b, err := sqlbackend.Open(":memory:")
		require.NoError(t, err)
		return b
	})
}
