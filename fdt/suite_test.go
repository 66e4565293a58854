package fdt_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestFdt(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "fdt Suite")
}
