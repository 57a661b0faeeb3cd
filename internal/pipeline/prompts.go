package pipeline

// --- Card Generation Prompts ---
const ImageBatchPrompt = `You will be provided with consecutive page images from a lecture, slide deck or set of notes.

Follow these instructions:

1.  **Cards**: Derive 15-20 high-quality flashcards from the pages. Group them by topic and give every card the topic it belongs to. Questions must be self-contained; answers must be concise and correct.
2.  **Flowchart**: Produce one Mermaid flowchart that summarizes how the main ideas on these pages relate. It must start with "graph TD" or "graph LR".
3.  **Transcription**: Transcribe all readable content of the pages, including handwriting, as plain text in reading order.

Return ONLY a single JSON object with exactly this shape and no surrounding text:
{
  "cards": [{"q": "Question", "a": "Answer", "topic": "Topic"}],
  "flowchart": "graph TD; A-->B",
  "transcription": "Full text of the pages"
}`

const TextBatchPrompt = `You will be provided with an excerpt of a document.

Follow these instructions:

1.  **Cards**: Derive 15-20 high-quality flashcards from the excerpt. Group them by topic and give every card the topic it belongs to. Questions must be self-contained; answers must be concise and correct.
2.  **Flowchart**: Produce one Mermaid flowchart that summarizes how the main ideas of the excerpt relate. It must start with "graph TD" or "graph LR".

The excerpt is already text, so no transcription is needed.

Return ONLY a single JSON object with exactly this shape and no surrounding text:
{
  "cards": [{"q": "Question", "a": "Answer", "topic": "Topic"}],
  "flowchart": "graph TD; A-->B"
}

TEXT TO ANALYZE:
`
