package main

import (
	"net/http"

	"github.com/almacen/inventory_backend/models"
	"github.com/gin-gonic/gin"
)

func (a *App) listClientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clients, err := a.store.ListClients(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, clients)
	}
}

func (a *App) getClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		client, err := a.store.GetClient(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func (a *App) createClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.NewClient
		if err := c.ShouldBindJSON(&in); err != nil {
			respondBindError(c, err)
			return
		}
		client, err := a.store.CreateClient(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Cliente registrado exitosamente", "cliente": client})
	}
}

func (a *App) updateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var in models.ClientUpdate
		if err := c.ShouldBindJSON(&in); err != nil {
			respondBindError(c, err)
			return
		}
		client, err := a.store.UpdateClient(c.Request.Context(), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Cliente actualizado exitosamente", "cliente": client})
	}
}

func (a *App) deleteClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		if err := a.store.DeleteClient(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Cliente eliminado exitosamente"})
	}
}

func (a *App) listCollectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId, err := queryInt(c, "cliente_id")
		if err != nil {
			respondError(c, err)
			return
		}
		collections, err := a.store.ListCollections(c.Request.Context(), clientId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, collections)
	}
}

func (a *App) createCollectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.NewCollection
		if err := c.ShouldBindJSON(&in); err != nil {
			respondBindError(c, err)
			return
		}
		res, err := a.store.CreateCollection(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":     "Cobro registrado exitosamente",
			"cobro":       res.Collection,
			"saldo_total": res.Balance,
		})
	}
}

func (a *App) deleteCollectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		res, err := a.store.DeleteCollection(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Cobro eliminado exitosamente", "saldo_total": res.Balance})
	}
}
