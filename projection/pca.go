// Package projection turns high-dimensional embedding vectors into 2D and 3D
// coordinates.
//
// # Pipeline
//
// Raw text embeddings (hundreds to thousands of dimensions) are noisy for
// nearest-neighbour graph construction. The reducer therefore runs in two
// stages:
//
//  1. PCA keeps the top k variance-maximizing directions (k defaults to 50).
//  2. UMAP runs twice on the reduced data, once for 2 output components and
//     once for 3, sharing the neighbour count, minimum distance and spread.
//
// # Principal Component Analysis via SVD
//
// For a centered data matrix X the thin SVD gives X = U * Σ * V^T. The columns
// of V are the principal directions ordered by captured variance, so projecting
// onto the first k of them is X * V[:, 0:k]. SVD is used instead of an
// eigendecomposition of X^T * X because it never forms the covariance matrix
// and is numerically more stable.
package projection

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA projects row vectors onto their top nComponents principal directions.
// The number of retained components is capped at min(rows, columns), which is
// all a thin SVD can provide. Every input row must have the same length.
func PCA(data [][]float64, nComponents int) ([][]float64, error) {
	numberOfRows := len(data)
	if numberOfRows == 0 {
		return nil, nil
	}
	numberOfColumns := len(data[0])
	if numberOfColumns == 0 {
		return nil, fmt.Errorf("pca: zero-length vectors")
	}
	if nComponents < 1 {
		return nil, fmt.Errorf("pca: component count must be positive, got %d", nComponents)
	}

	retainedComponents := min(nComponents, numberOfRows, numberOfColumns)

	dataMatrix := convertRowsToMatrix(data, numberOfColumns)
	centerDataMatrixBySubtractingColumnMeans(dataMatrix)

	principalComponentMatrix, err := computePrincipalComponentsUsingSVD(dataMatrix, retainedComponents)
	if err != nil {
		return nil, err
	}

	var projectedCoordinates mat.Dense
	projectedCoordinates.Mul(dataMatrix, principalComponentMatrix)

	return matrixToRows(&projectedCoordinates), nil
}

// convertRowsToMatrix copies row vectors into a gonum Dense matrix of shape
// (rows x columns).
func convertRowsToMatrix(rows [][]float64, numberOfColumns int) *mat.Dense {
	flattenedMatrixData := make([]float64, 0, len(rows)*numberOfColumns)
	for _, row := range rows {
		flattenedMatrixData = append(flattenedMatrixData, row...)
	}
	return mat.NewDense(len(rows), numberOfColumns, flattenedMatrixData)
}

// centerDataMatrixBySubtractingColumnMeans gives every column zero mean in place.
// Without centering the first component would point at the data's centroid
// rather than along its widest spread.
func centerDataMatrixBySubtractingColumnMeans(dataMatrix *mat.Dense) {
	numberOfRows, numberOfColumns := dataMatrix.Dims()

	for columnIndex := 0; columnIndex < numberOfColumns; columnIndex++ {
		columnValues := mat.Col(nil, columnIndex, dataMatrix)
		columnMean := stat.Mean(columnValues, nil)
		for rowIndex := 0; rowIndex < numberOfRows; rowIndex++ {
			dataMatrix.Set(rowIndex, columnIndex, columnValues[rowIndex]-columnMean)
		}
	}
}

// computePrincipalComponentsUsingSVD factorizes the centered matrix and returns
// the first k right singular vectors as a (columns x k) matrix.
func computePrincipalComponentsUsingSVD(centeredDataMatrix *mat.Dense, k int) (*mat.Dense, error) {
	var svdDecomposition mat.SVD
	if !svdDecomposition.Factorize(centeredDataMatrix, mat.SVDThin) {
		return nil, fmt.Errorf("pca: svd did not converge")
	}

	var rightSingularVectors mat.Dense
	svdDecomposition.VTo(&rightSingularVectors)

	numberOfRows, numberOfColumns := rightSingularVectors.Dims()
	if numberOfColumns < k {
		return nil, fmt.Errorf("pca: svd returned %d components, need %d", numberOfColumns, k)
	}

	principalComponents := mat.DenseCopyOf(rightSingularVectors.Slice(0, numberOfRows, 0, k))
	return principalComponents, nil
}

func matrixToRows(matrix *mat.Dense) [][]float64 {
	numberOfRows, _ := matrix.Dims()
	rows := make([][]float64, numberOfRows)
	for rowIndex := range rows {
		rows[rowIndex] = mat.Row(nil, rowIndex, matrix)
	}
	return rows
}
