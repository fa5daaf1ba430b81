package rag

// Structured llm outputs. Each generation call declares one of these as its
// output schema and unmarshals the response into it.

type answerPayload struct {
	Answer          string  `json:"answer" json-description:"The answer to the question, grounded only in the supplied documents"`
	ConfidenceScore float32 `json:"confidence_score,omitempty" json-minimum:"0.0" json-maximum:"1.0" json-description:"a confidence score between [0.0, 1.0] that denotes how well the supplied documents support the answer"`
}

type subQueryPayload struct {
	SubQueries []string `json:"sub_queries" json-description:"Self-contained sub-questions that together cover the original question. Return a single entry when the question cannot be split"`
}

type variantPayload struct {
	Variants []string `json:"variants" json-description:"Alternative phrasings of the question, each capturing a different aspect of the same information need"`
}

type hypotheticalPayload struct {
	Passage string `json:"passage" json-description:"A hypothetical document passage that would perfectly answer the question, written as an excerpt from a real document"`
}

type evaluationPayload struct {
	Completeness float64 `json:"completeness" json-minimum:"0.0" json-maximum:"1.0" json-description:"how completely the answer addresses every part of the question"`
	Relevance    float64 `json:"relevance" json-minimum:"0.0" json-maximum:"1.0" json-description:"how relevant the answer is to what was actually asked"`
	Confidence   float64 `json:"confidence" json-minimum:"0.0" json-maximum:"1.0" json-description:"how well the supplied documents support the answer"`
	Rationale    string  `json:"rationale" json-description:"one or two sentences motivating the scores"`
}
