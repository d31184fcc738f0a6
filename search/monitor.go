package search

import (
	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/index"
)

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during retrieval.
type RetrievalMonitor interface {
	Start(query string)
	AfterLexicalSearch(hits []*index.LexicalHit)
	AfterVectorSearch(hits []*index.VectorHit)
	LexicalSearchDegraded(err error)
	VectorSearchDegraded(err error)
	AfterFusion(results []*core.RetrievalResult)
	RerankFailedOpen(err error)
	Finish(results []*core.RetrievalResult)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                             {}
func (n *noopMonitor) AfterLexicalSearch(_ []*index.LexicalHit)   {}
func (n *noopMonitor) AfterVectorSearch(_ []*index.VectorHit)     {}
func (n *noopMonitor) LexicalSearchDegraded(_ error)              {}
func (n *noopMonitor) VectorSearchDegraded(_ error)               {}
func (n *noopMonitor) AfterFusion(_ []*core.RetrievalResult)      {}
func (n *noopMonitor) RerankFailedOpen(_ error)                   {}
func (n *noopMonitor) Finish(_ []*core.RetrievalResult)           {}
