package model

import "errors"

var (
	// ErrMissingAPIKey indica que a chave da API de IA não foi configurada
	ErrMissingAPIKey = errors.New("chave da API de IA não configurada")

	// ErrProviderFailure indica falha de rede ou do serviço de IA
	ErrProviderFailure = errors.New("falha no serviço de IA")

	// ErrTimeout indica timeout na chamada ao serviço de IA
	ErrTimeout = errors.New("timeout na requisição para o serviço de IA")

	// ErrRateLimited indica que o limite local de análises foi atingido
	ErrRateLimited = errors.New("limite de análises excedido")

	// ErrInvalidAnalysis indica que a análise montada viola suas invariantes
	ErrInvalidAnalysis = errors.New("análise da IA inválida")

	// ErrEmptyResponse indica que o modelo não devolveu texto
	ErrEmptyResponse = errors.New("resposta vazia do serviço de IA")

	// ErrInvalidCEP indica CEP com formato inválido
	ErrInvalidCEP = errors.New("CEP inválido")

	// ErrCEPNotFound indica CEP inexistente no ViaCEP
	ErrCEPNotFound = errors.New("CEP não encontrado")

	// ErrCanceled indica que a análise foi substituída ou cancelada
	ErrCanceled = errors.New("análise cancelada")
)
