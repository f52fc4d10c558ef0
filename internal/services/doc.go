// Package services holds cross-cutting helpers shared by pipeline
// components: the error taxonomy used to classify stage failures and the
// context keys that carry job/stage identity into logs.
package services
