package processing

import (
	"github.com/menta2k/background-remover/internal/utils"
	"github.com/menta2k/background-remover/pkg/types"
)

// OutputSuffix is appended to the input basename of every export
const OutputSuffix = "_nobg"

// OutputPath returns {dir}/{input_basename}_nobg.{ext} for the given format
func OutputPath(inputPath, dir string, format types.Format) string {
	return utils.GenerateOutputFilename(inputPath, dir, "", OutputSuffix, format.Extension())
}
