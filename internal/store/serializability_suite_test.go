package store

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestSerializabilityPropertySuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Serializability Property Suite")
}
