package placement

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestPlacementPropertySuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Placement Property Suite")
}
